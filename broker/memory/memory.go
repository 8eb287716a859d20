// Package memory provides an in-memory implementation of broker.Broker. It is
// suitable for single-process deployments and tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/mcp-protocol-go/broker"
	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

// Broker implements broker.Broker with in-process storage. Every message is
// retained until its namespace is cleaned up.
type Broker struct {
	mu           sync.Mutex
	namespaces   map[string]*namespace
	eventCounter atomic.Int64
}

type namespace struct {
	mu       sync.Mutex
	messages []broker.MessageEnvelope
	// wake is closed and replaced on every publish.
	wake   chan struct{}
	closed bool
}

// New creates a new memory-based broker instance.
func New() *Broker {
	return &Broker{namespaces: make(map[string]*namespace)}
}

func (b *Broker) namespace(name string) *namespace {
	b.mu.Lock()
	defer b.mu.Unlock()
	ns, ok := b.namespaces[name]
	if !ok {
		ns = &namespace{wake: make(chan struct{})}
		b.namespaces[name] = ns
	}
	return ns
}

// Publish implements broker.Broker.
func (b *Broker) Publish(ctx context.Context, namespaceName string, message jsonrpc.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	env := broker.MessageEnvelope{
		ID:   strconv.FormatInt(b.eventCounter.Add(1), 10),
		Data: append([]byte(nil), message...),
	}

	ns := b.namespace(namespaceName)
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.closed {
		return "", fmt.Errorf("publish to %q: %w", namespaceName, broker.ErrNamespaceClosed)
	}
	ns.messages = append(ns.messages, env)
	close(ns.wake)
	ns.wake = make(chan struct{})
	return env.ID, nil
}

// Subscribe implements broker.Broker.
func (b *Broker) Subscribe(ctx context.Context, namespaceName string, lastEventID string, handler broker.MessageHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ns := b.namespace(namespaceName)
	ns.mu.Lock()
	next, err := ns.startIndex(lastEventID)
	ns.mu.Unlock()
	if err != nil {
		return fmt.Errorf("subscribe to %q from %q: %w", namespaceName, lastEventID, err)
	}

	for {
		ns.mu.Lock()
		if ns.closed {
			ns.mu.Unlock()
			return broker.ErrNamespaceClosed
		}
		batch := ns.messages[next:]
		next = len(ns.messages)
		wake := ns.wake
		ns.mu.Unlock()

		for _, env := range batch {
			if err := handler(ctx, env); err != nil {
				return err
			}
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

func (ns *namespace) startIndex(lastEventID string) (int, error) {
	switch lastEventID {
	case "":
		return len(ns.messages), nil
	case broker.FromBeginning:
		return 0, nil
	}
	for i, msg := range ns.messages {
		if msg.ID == lastEventID {
			return i + 1, nil
		}
	}
	return 0, broker.ErrEventNotFound
}

// Cleanup implements broker.Broker. Active subscriptions end with
// broker.ErrNamespaceClosed.
func (b *Broker) Cleanup(ctx context.Context, namespaceName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	ns, ok := b.namespaces[namespaceName]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	delete(b.namespaces, namespaceName)
	b.mu.Unlock()

	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.closed = true
	ns.messages = nil
	close(ns.wake)
	return nil
}

var _ broker.Broker = (*Broker)(nil)
