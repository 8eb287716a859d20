package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ggoodman/mcp-protocol-go/broker"
	"github.com/ggoodman/mcp-protocol-go/broker/brokertest"
	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

func TestMemoryBroker(t *testing.T) {
	brokertest.RunBrokerTests(t, func(t *testing.T) broker.Broker {
		return New()
	})
}

func TestBroker_ResumeFromEventID(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	namespace := "test-resume"

	var ids []string
	for i := 1; i <= 3; i++ {
		id, err := b.Publish(ctx, namespace, jsonrpc.Message(fmt.Sprintf(`{"jsonrpc":"2.0","method":"test%d","id":%d}`, i, i)))
		if err != nil {
			t.Fatalf("Failed to publish message %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	var got []string
	stop := errors.New("stop")
	err := b.Subscribe(ctx, namespace, ids[0], func(_ context.Context, env broker.MessageEnvelope) error {
		got = append(got, env.ID)
		if len(got) == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Expected stop, got %v", err)
	}
	if got[0] != ids[1] || got[1] != ids[2] {
		t.Fatalf("Expected %v, got %v", ids[1:], got)
	}
}

func TestBroker_CleanupEndsSubscription(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Subscribe(ctx, "ns", broker.FromBeginning, func(context.Context, broker.MessageEnvelope) error {
			close(started)
			return nil
		})
	}()

	if _, err := b.Publish(ctx, "ns", jsonrpc.Message(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	<-started
	if err := b.Cleanup(ctx, "ns"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, broker.ErrNamespaceClosed) {
			t.Fatalf("Expected ErrNamespaceClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("subscription did not end after cleanup")
	}
}

func TestBroker_PublishCopiesMessage(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg := jsonrpc.Message(`{"a":1}`)
	if _, err := b.Publish(ctx, "ns", msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg[2] = 'b'

	stop := errors.New("stop")
	_ = b.Subscribe(ctx, "ns", broker.FromBeginning, func(_ context.Context, env broker.MessageEnvelope) error {
		if string(env.Data) != `{"a":1}` {
			t.Errorf("stored message was mutated: %s", env.Data)
		}
		return stop
	})
}
