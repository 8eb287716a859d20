package mcp

import (
	"encoding/json"
	"testing"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

func TestMergeServerCapabilities_NestedRecordsMerge(t *testing.T) {
	base := ServerCapabilities{
		Resources: &ResourcesCapability{Subscribe: true},
		Experimental: map[string]any{
			"feature": map[string]any{"a": 1.0, "b": "x"},
		},
	}
	add := ServerCapabilities{
		Resources: &ResourcesCapability{ListChanged: true},
		Tools:     &ToolsCapability{ListChanged: true},
		Experimental: map[string]any{
			"feature": map[string]any{"b": "y", "c": true},
		},
	}

	got, err := MergeServerCapabilities(base, add)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if got.Resources == nil || !got.Resources.Subscribe || !got.Resources.ListChanged {
		t.Fatalf("expected resources subscribe+listChanged, got %#v", got.Resources)
	}
	if got.Tools == nil || !got.Tools.ListChanged {
		t.Fatalf("expected tools listChanged, got %#v", got.Tools)
	}
	feature, ok := got.Experimental["feature"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested experimental record, got %#v", got.Experimental)
	}
	if feature["a"] != 1.0 || feature["b"] != "y" || feature["c"] != true {
		t.Fatalf("unexpected merged experimental record: %#v", feature)
	}
}

func TestMergeServerCapabilities_DoesNotMutateInputs(t *testing.T) {
	base := ServerCapabilities{Experimental: map[string]any{"k": map[string]any{"v": 1.0}}}
	add := ServerCapabilities{Experimental: map[string]any{"k": map[string]any{"v": 2.0}}}

	before, _ := json.Marshal(base)
	if _, err := MergeServerCapabilities(base, add); err != nil {
		t.Fatalf("merge: %v", err)
	}
	after, _ := json.Marshal(base)
	if string(before) != string(after) {
		t.Fatalf("base mutated: %s -> %s", before, after)
	}
}

func TestMergeClientCapabilities_ScalarReplaces(t *testing.T) {
	base := ClientCapabilities{
		Sampling:     &SamplingCapability{},
		Experimental: map[string]any{"mode": "a"},
	}
	add := ClientCapabilities{
		Roots:        &RootsCapability{ListChanged: true},
		Experimental: map[string]any{"mode": map[string]any{"nested": true}},
	}

	got, err := MergeClientCapabilities(base, add)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got.Sampling == nil {
		t.Fatal("expected sampling capability to survive merge")
	}
	if got.Roots == nil || !got.Roots.ListChanged {
		t.Fatalf("expected roots listChanged, got %#v", got.Roots)
	}
	if _, ok := got.Experimental["mode"].(map[string]any); !ok {
		t.Fatalf("expected add's record to replace scalar, got %#v", got.Experimental["mode"])
	}
}

func TestIsSupportedProtocolVersion(t *testing.T) {
	if !IsSupportedProtocolVersion(LatestProtocolVersion) {
		t.Fatal("latest version must be supported")
	}
	if IsSupportedProtocolVersion("1999-01-01") {
		t.Fatal("unknown version must not be supported")
	}
}

func TestProgressNotificationParams_TokenKinds(t *testing.T) {
	var p ProgressNotificationParams
	if err := json.Unmarshal([]byte(`{"progressToken":3,"progress":1,"total":4,"message":"step"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n, ok := p.ProgressToken.Int64(); !ok || n != 3 {
		t.Fatalf("expected numeric token 3, got %v", p.ProgressToken.Value())
	}
	if p.Message != "step" || p.Total == nil || *p.Total != 4 {
		t.Fatalf("unexpected params %#v", p)
	}

	var noTotal ProgressNotificationParams
	if err := json.Unmarshal([]byte(`{"progressToken":"t","progress":0}`), &noTotal); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if noTotal.Total != nil {
		t.Fatalf("expected no total, got %v", *noTotal.Total)
	}
	var zeroTotal ProgressNotificationParams
	if err := json.Unmarshal([]byte(`{"progressToken":"t","progress":0,"total":0}`), &zeroTotal); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if zeroTotal.Total == nil || *zeroTotal.Total != 0 {
		t.Fatalf("expected total 0 to be kept, got %#v", zeroTotal)
	}

	b, err := json.Marshal(CancelledNotification{RequestID: *jsonrpc.NewIntRequestID(9), Reason: "bye"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"requestId":9,"reason":"bye"}` {
		t.Fatalf("unexpected encoding %s", b)
	}
}
