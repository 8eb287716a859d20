package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type sumResult struct {
	Sum   int    `json:"sum" jsonschema:"required"`
	Label string `json:"label,omitempty"`
}

func TestCheck_RequiredProperty(t *testing.T) {
	err := Check[sumResult](json.RawMessage(`{"label":"x"}`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !strings.Contains(ve.Error(), `"sum"`) {
		t.Fatalf("expected missing sum to be reported, got %v", ve)
	}
}

func TestCheck_PropertyType(t *testing.T) {
	if err := Check[sumResult](json.RawMessage(`{"sum":"five"}`)); err == nil {
		t.Fatal("expected type mismatch to be reported")
	}
	if err := Check[sumResult](json.RawMessage(`{"sum":5}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecode_Scalar(t *testing.T) {
	n, err := Decode[int](json.RawMessage(`5`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5, got %d", n)
	}
	if _, err := Decode[int](json.RawMessage(`"5"`)); err == nil {
		t.Fatal("expected string to be rejected for int")
	}
}

func TestDecode_Pointer(t *testing.T) {
	res, err := Decode[*sumResult](json.RawMessage(`{"sum":5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res == nil || res.Sum != 5 {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestDecode_NullForNillableTypes(t *testing.T) {
	list, err := Decode[[]string](json.RawMessage(`null`))
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if list != nil {
		t.Fatalf("expected nil slice, got %#v", list)
	}
	if _, err := Decode[map[string]int](json.RawMessage(`null`)); err != nil {
		t.Fatalf("map: %v", err)
	}
	res, err := Decode[*sumResult](json.RawMessage(`null`))
	if err != nil {
		t.Fatalf("pointer: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil pointer, got %#v", res)
	}

	if _, err := Decode[sumResult](json.RawMessage(`null`)); err == nil {
		t.Fatal("expected null to be rejected for a struct")
	}
	if _, err := Decode[int](json.RawMessage(`null`)); err == nil {
		t.Fatal("expected null to be rejected for an int")
	}
}
