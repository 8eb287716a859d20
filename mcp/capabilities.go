package mcp

import (
	"encoding/json"
	"fmt"
)

// ClientCapabilities advertises client features.
type ClientCapabilities struct {
	Experimental map[string]any         `json:"experimental,omitempty"`
	Roots        *RootsCapability       `json:"roots,omitempty"`
	Sampling     *SamplingCapability    `json:"sampling,omitempty"`
	Elicitation  *ElicitationCapability `json:"elicitation,omitempty"`
}

// RootsCapability is present when the client can list roots.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// SamplingCapability is present when the client can sample from a model.
type SamplingCapability struct{}

// ElicitationCapability is present when the client can elicit user input.
type ElicitationCapability struct{}

// ServerCapabilities advertises server features.
type ServerCapabilities struct {
	Experimental map[string]any         `json:"experimental,omitempty"`
	Logging      *LoggingCapability     `json:"logging,omitempty"`
	Completions  *CompletionsCapability `json:"completions,omitempty"`
	Prompts      *PromptsCapability     `json:"prompts,omitempty"`
	Resources    *ResourcesCapability   `json:"resources,omitempty"`
	Tools        *ToolsCapability       `json:"tools,omitempty"`
}

// LoggingCapability is present when the server emits log messages.
type LoggingCapability struct{}

// CompletionsCapability is present when the server offers argument completion.
type CompletionsCapability struct{}

// PromptsCapability describes prompt support.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability describes resource support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsCapability describes tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// MergeClientCapabilities returns a new record holding base overlaid with add.
// Neither input is modified.
func MergeClientCapabilities(base, add ClientCapabilities) (ClientCapabilities, error) {
	var out ClientCapabilities
	if err := mergeRecords(base, add, &out); err != nil {
		return ClientCapabilities{}, fmt.Errorf("merge client capabilities: %w", err)
	}
	return out, nil
}

// MergeServerCapabilities returns a new record holding base overlaid with add.
// Neither input is modified.
func MergeServerCapabilities(base, add ServerCapabilities) (ServerCapabilities, error) {
	var out ServerCapabilities
	if err := mergeRecords(base, add, &out); err != nil {
		return ServerCapabilities{}, fmt.Errorf("merge server capabilities: %w", err)
	}
	return out, nil
}

// mergeRecords works on the JSON object form of both records so that
// experimental entries merge with the same rules as the typed fields.
func mergeRecords(base, add, out any) error {
	a, err := toObject(base)
	if err != nil {
		return err
	}
	b, err := toObject(add)
	if err != nil {
		return err
	}
	merged, err := json.Marshal(MergeObjects(a, b))
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, out)
}

func toObject(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// MergeObjects deep-merges two JSON objects into a fresh map. A key whose
// values are objects on both sides is merged recursively; otherwise the
// value from add wins.
func MergeObjects(base, add map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(add))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range add {
		if bv, ok := out[k].(map[string]any); ok {
			if av, ok := v.(map[string]any); ok {
				out[k] = MergeObjects(bv, av)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return MergeObjects(t, nil)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = cloneValue(e)
		}
		return cp
	default:
		return v
	}
}
