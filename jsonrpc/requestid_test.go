package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestRequestID_UnmarshalKeepsType(t *testing.T) {
	t.Parallel()

	var s RequestID
	if err := json.Unmarshal([]byte(`"42"`), &s); err != nil {
		t.Fatalf("unmarshal string id: %v", err)
	}
	if _, ok := s.Value().(string); !ok {
		t.Fatalf("expected string id, got %T", s.Value())
	}

	var n RequestID
	if err := json.Unmarshal([]byte(`42`), &n); err != nil {
		t.Fatalf("unmarshal numeric id: %v", err)
	}
	if v, ok := n.Value().(int64); !ok || v != 42 {
		t.Fatalf("expected int64 42, got %T %v", n.Value(), n.Value())
	}

	if s.Equal(&n) {
		t.Fatal("string and numeric ids must not compare equal")
	}

	var f RequestID
	if err := json.Unmarshal([]byte(`7.0`), &f); err != nil {
		t.Fatalf("unmarshal integral float id: %v", err)
	}
	if v, _ := f.Int64(); v != 7 {
		t.Fatalf("expected 7, got %v", f.Value())
	}
}

func TestRequestID_MarshalByValue(t *testing.T) {
	t.Parallel()

	type params struct {
		RequestID RequestID `json:"requestId"`
	}

	b, err := json.Marshal(params{RequestID: *NewRequestID(5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"requestId":5}` {
		t.Fatalf("unexpected encoding %s", b)
	}

	b, err = json.Marshal(params{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"requestId":null}` {
		t.Fatalf("unexpected encoding %s", b)
	}
}

func TestRequestID_Int64(t *testing.T) {
	t.Parallel()

	if v, ok := NewRequestID("17").Int64(); !ok || v != 17 {
		t.Fatalf("numeric string should convert, got %d %v", v, ok)
	}
	if _, ok := NewRequestID("tok").Int64(); ok {
		t.Fatal("non-numeric string should not convert")
	}
	var nilID *RequestID
	if !nilID.IsNil() {
		t.Fatal("nil pointer should be nil id")
	}
	if nilID.String() != "" {
		t.Fatal("nil id should stringify to empty")
	}
}

func TestErrorCode_IsSafe(t *testing.T) {
	t.Parallel()

	if !ErrorCodeRequestTimeout.IsSafe() {
		t.Fatal("standard codes are safe")
	}
	if ErrorCode(1 << 60).IsSafe() {
		t.Fatal("codes beyond 2^53 are not safe")
	}
}
