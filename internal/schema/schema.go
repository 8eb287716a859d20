// Package schema checks raw JSON payloads against the shape of a Go type
// before decoding them. The shape is derived once per type by reflecting a
// JSON Schema with invopop/jsonschema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	js "github.com/invopop/jsonschema"
)

// ValidationError lists every problem found in one payload.
type ValidationError struct {
	Type     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Type, strings.Join(e.Problems, "; "))
}

type shape struct {
	typ        string
	required   []string
	properties map[string]string
}

var shapes sync.Map // reflect.Type -> *shape

var rawMessageType = reflect.TypeFor[json.RawMessage]()

// opaqueFields names the struct fields that carry pass-through JSON and are
// therefore never type checked.
func opaqueFields(t reflect.Type) map[string]bool {
	out := map[string]bool{}
	if t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if f.Anonymous && name == "" && ft.Kind() == reflect.Struct {
			for k := range opaqueFields(ft) {
				out[k] = true
			}
			continue
		}
		if name == "" {
			name = f.Name
		}
		if isOpaque(ft) {
			out[name] = true
		}
	}
	return out
}

var marshalerType = reflect.TypeFor[json.Marshaler]()

// isOpaque reports types whose wire form cannot be inferred from their Go
// structure.
func isOpaque(t reflect.Type) bool {
	if t == rawMessageType || t.Kind() == reflect.Interface {
		return true
	}
	return t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType)
}

func shapeOf(t reflect.Type) *shape {
	if v, ok := shapes.Load(t); ok {
		return v.(*shape)
	}

	s := &shape{properties: map[string]string{}}
	if !isOpaque(t) {
		r := &js.Reflector{
			RequiredFromJSONSchemaTags: true,
			DoNotReference:             true,
			ExpandedStruct:             t.Kind() == reflect.Struct,
			AllowAdditionalProperties:  true,
		}
		root := r.ReflectFromType(t)
		opaque := opaqueFields(t)
		s.typ = root.Type
		s.required = append(s.required, root.Required...)
		if root.Properties != nil {
			for pair := root.Properties.Oldest(); pair != nil; pair = pair.Next() {
				if pair.Value != nil && !opaque[pair.Key] {
					s.properties[pair.Key] = pair.Value.Type
				}
			}
		}
	}

	actual, _ := shapes.LoadOrStore(t, s)
	return actual.(*shape)
}

// Check validates raw against the shape of T. A JSON null is accepted for
// pointer, slice and map types, which decode it to nil.
func Check[T any](raw json.RawMessage) error {
	t := reflect.TypeFor[T]()
	got := kindOf(raw)
	if got == "null" && nillable(t) {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s := shapeOf(t)

	var problems []string

	if s.typ != "" && !compatible(s.typ, got, raw) {
		problems = append(problems, fmt.Sprintf("expected %s, got %s", s.typ, got))
	} else if s.typ == "object" && got == "object" {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			problems = append(problems, err.Error())
		}
		for _, name := range s.required {
			if _, ok := obj[name]; !ok {
				problems = append(problems, fmt.Sprintf("missing required property %q", name))
			}
		}
		for name, val := range obj {
			want, ok := s.properties[name]
			if !ok || want == "" {
				continue
			}
			if k := kindOf(val); k != "null" && !compatible(want, k, val) {
				problems = append(problems, fmt.Sprintf("property %q: expected %s, got %s", name, want, k))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Type: t.String(), Problems: problems}
	}
	return nil
}

// Decode checks raw against T and then unmarshals it.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if err := Check[T](raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("schema: decode %T: %w", out, err)
	}
	return out, nil
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

func kindOf(raw json.RawMessage) string {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return "null"
	}
	switch b[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func compatible(want, got string, raw json.RawMessage) bool {
	switch want {
	case got:
		return true
	case "integer":
		if got != "number" {
			return false
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return false
		}
		_, err := n.Int64()
		return err == nil
	}
	return false
}
