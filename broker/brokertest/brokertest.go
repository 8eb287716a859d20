// Package brokertest is a conformance suite for broker.Broker
// implementations.
package brokertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ggoodman/mcp-protocol-go/broker"
	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

// BrokerFactory is a function that creates a new broker instance for testing.
type BrokerFactory func(t *testing.T) broker.Broker

// settle is how long a subscription started with an empty lastEventID is
// given to attach before messages are published.
const settle = 100 * time.Millisecond

// RunBrokerTests runs the complete broker test suite against the provided factory.
func RunBrokerTests(t *testing.T, factory BrokerFactory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b broker.Broker)
	}{
		{"NewMessagesOnly", testNewMessagesOnly},
		{"FromBeginning", testFromBeginning},
		{"ResumeAfterEventID", testResumeAfterEventID},
		{"OrderedDelivery", testOrderedDelivery},
		{"FanOut", testFanOut},
		{"NamespaceIsolation", testNamespaceIsolation},
		{"ContextCancellation", testContextCancellation},
		{"HandlerErrorStopsSubscription", testHandlerErrorStopsSubscription},
		{"CleanupRemovesMessages", testCleanupRemovesMessages},
		{"UnknownEventID", testUnknownEventID},
		{"EventIDsAreUnique", testEventIDsAreUnique},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := factory(t)
			t.Cleanup(func() { closeBroker(t, b) })
			tc.fn(t, b)
		})
	}
}

func testNewMessagesOnly(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	publish(t, b, ns, "before")

	sub := subscribe(t, b, ns, "")
	time.Sleep(settle)
	id := publish(t, b, ns, "after")

	env := sub.next(t)
	if env.ID != id {
		t.Fatalf("expected event ID %s, got %s", id, env.ID)
	}
	if m := method(t, env); m != "after" {
		t.Fatalf("expected method after, got %s", m)
	}
	sub.none(t, settle)
}

func testFromBeginning(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, publish(t, b, ns, fmt.Sprintf("m%d", i)))
	}

	sub := subscribe(t, b, ns, broker.FromBeginning)
	for i, id := range ids {
		if env := sub.next(t); env.ID != id {
			t.Fatalf("message %d: expected event ID %s, got %s", i, id, env.ID)
		}
	}
}

func testResumeAfterEventID(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	first := publish(t, b, ns, "a")
	publish(t, b, ns, "b")
	publish(t, b, ns, "c")

	sub := subscribe(t, b, ns, first)
	for _, want := range []string{"b", "c"} {
		if m := method(t, sub.next(t)); m != want {
			t.Fatalf("expected method %s, got %s", want, m)
		}
	}
	sub.none(t, settle)
}

func testOrderedDelivery(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	sub := subscribe(t, b, ns, broker.FromBeginning)

	const n = 100
	for i := 0; i < n; i++ {
		publish(t, b, ns, fmt.Sprintf("m%03d", i))
	}
	for i := 0; i < n; i++ {
		if m, want := method(t, sub.next(t)), fmt.Sprintf("m%03d", i); m != want {
			t.Fatalf("message %d: expected %s, got %s", i, want, m)
		}
	}
}

func testFanOut(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	s1 := subscribe(t, b, ns, "")
	s2 := subscribe(t, b, ns, "")
	time.Sleep(settle)

	id := publish(t, b, ns, "shared")
	for i, sub := range []*subscription{s1, s2} {
		if env := sub.next(t); env.ID != id {
			t.Fatalf("subscriber %d: expected event ID %s, got %s", i+1, id, env.ID)
		}
		sub.none(t, settle)
	}
}

func testNamespaceIsolation(t *testing.T, b broker.Broker) {
	nsA := namespace(t, b, "a")
	nsB := namespace(t, b, "b")
	subA := subscribe(t, b, nsA, "")
	subB := subscribe(t, b, nsB, "")
	time.Sleep(settle)

	publish(t, b, nsA, "for-a")
	publish(t, b, nsB, "for-b")

	if m := method(t, subA.next(t)); m != "for-a" {
		t.Fatalf("namespace a: expected for-a, got %s", m)
	}
	if m := method(t, subB.next(t)); m != "for-b" {
		t.Fatalf("namespace b: expected for-b, got %s", m)
	}
	subA.none(t, settle)
	subB.none(t, settle)
}

func testContextCancellation(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- b.Subscribe(ctx, ns, "", func(context.Context, broker.MessageEnvelope) error { return nil })
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected context.DeadlineExceeded, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subscription ignored context cancellation")
	}
}

func testHandlerErrorStopsSubscription(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	publish(t, b, ns, "boom")
	publish(t, b, ns, "never")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	handlerErr := errors.New("handler error")
	calls := 0
	err := b.Subscribe(ctx, ns, broker.FromBeginning, func(context.Context, broker.MessageEnvelope) error {
		calls++
		return handlerErr
	})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the handler to run once, ran %d times", calls)
	}
}

func testCleanupRemovesMessages(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	id := publish(t, b, ns, "gone")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := b.Cleanup(ctx, ns); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if err := b.Subscribe(ctx, ns, id, func(context.Context, broker.MessageEnvelope) error { return nil }); !errors.Is(err, broker.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound resuming from a cleaned up event, got %v", err)
	}

	sub := subscribe(t, b, ns, broker.FromBeginning)
	sub.none(t, settle)
}

func testUnknownEventID(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	publish(t, b, ns, "known")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, id := range []string{"non-existent-id", "999999999999-0"} {
		err := b.Subscribe(ctx, ns, id, func(context.Context, broker.MessageEnvelope) error { return nil })
		if !errors.Is(err, broker.ErrEventNotFound) {
			t.Fatalf("lastEventID %q: expected ErrEventNotFound, got %v", id, err)
		}
	}
}

func testEventIDsAreUnique(t *testing.T, b broker.Broker) {
	ns := namespace(t, b, "")
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		id := publish(t, b, ns, "m")
		if id == "" {
			t.Fatal("expected non-empty event ID")
		}
		if seen[id] {
			t.Fatalf("event ID %s issued twice", id)
		}
		seen[id] = true
	}
}

// namespace returns a namespace unique to the running test and removes it
// when the test ends.
func namespace(t *testing.T, b broker.Broker, suffix string) string {
	t.Helper()
	ns := fmt.Sprintf("brokertest:%s:%d", t.Name(), time.Now().UnixNano())
	if suffix != "" {
		ns += ":" + suffix
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.Cleanup(ctx, ns); err != nil {
			t.Logf("warning: failed to cleanup namespace %s: %v", ns, err)
		}
	})
	return ns
}

func publish(t *testing.T, b broker.Broker, ns, method string) string {
	t.Helper()
	msg, err := json.Marshal(jsonrpc.Notification{JSONRPCVersion: jsonrpc.ProtocolVersion, Method: method})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := b.Publish(ctx, ns, jsonrpc.Message(msg))
	if err != nil {
		t.Fatalf("publish to %s: %v", ns, err)
	}
	return id
}

func method(t *testing.T, env broker.MessageEnvelope) string {
	t.Helper()
	var n jsonrpc.Notification
	if err := json.Unmarshal(env.Data, &n); err != nil {
		t.Fatalf("unmarshal event %s: %v", env.ID, err)
	}
	return n.Method
}

// subscription runs Subscribe in the background and buffers what it
// delivers.
type subscription struct {
	msgs    chan broker.MessageEnvelope
	stopped chan struct{}
	err     error
}

func subscribe(t *testing.T, b broker.Broker, ns, lastEventID string) *subscription {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription{msgs: make(chan broker.MessageEnvelope, 256), stopped: make(chan struct{})}
	go func() {
		defer close(s.stopped)
		s.err = b.Subscribe(ctx, ns, lastEventID, func(ctx context.Context, env broker.MessageEnvelope) error {
			select {
			case s.msgs <- env:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-s.stopped:
		case <-time.After(5 * time.Second):
			t.Errorf("subscription to %s did not stop", ns)
		}
	})
	return s
}

func (s *subscription) next(t *testing.T) broker.MessageEnvelope {
	t.Helper()
	select {
	case env := <-s.msgs:
		return env
	case <-s.stopped:
		t.Fatalf("subscription ended early: %v", s.err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a message")
	}
	return broker.MessageEnvelope{}
}

func (s *subscription) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case env := <-s.msgs:
		t.Fatalf("unexpected message %s", env.ID)
	case <-time.After(wait):
	}
}

func closeBroker(t *testing.T, b broker.Broker) {
	if closer, ok := b.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			t.Logf("warning: failed to close broker: %v", err)
		}
	}
}
