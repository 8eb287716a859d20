// Package broker defines an ordered, namespaced message bus. The
// brokertransport package runs a protocol connection over two of its
// namespaces, which lets the peers live in different processes that share
// only the bus.
package broker

import (
	"context"
	"errors"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

// FromBeginning is the lastEventID that replays a namespace from its first
// retained message.
const FromBeginning = "0"

var (
	// ErrEventNotFound is returned by Subscribe when lastEventID is unknown.
	ErrEventNotFound = errors.New("broker: event id not found")
	// ErrNamespaceClosed is returned by Subscribe when its namespace is
	// cleaned up while the subscription is active.
	ErrNamespaceClosed = errors.New("broker: namespace cleaned up")
)

// Broker handles message queuing and delivery. It provides namespace-based
// message isolation and ordered delivery within each namespace.
type Broker interface {
	// Publish appends message to namespace and returns its event ID.
	Publish(ctx context.Context, namespace string, message jsonrpc.Message) (eventID string, err error)

	// Subscribe calls handler for each message of namespace, in order, until
	// ctx ends or handler fails. If lastEventID is empty only messages
	// published after the call are delivered; FromBeginning replays every
	// retained message; any other value resumes after that event.
	Subscribe(ctx context.Context, namespace string, lastEventID string, handler MessageHandler) error

	// Cleanup removes all resources associated with a namespace.
	Cleanup(ctx context.Context, namespace string) error
}

// MessageHandler consumes one delivered message. Returning an error ends the
// subscription with that error.
type MessageHandler func(ctx context.Context, envelope MessageEnvelope) error

// MessageEnvelope wraps a message with metadata for ordered delivery.
type MessageEnvelope struct {
	// ID is unique and increasing within the namespace.
	ID string `json:"id"`
	// Data is the serialized message.
	Data []byte `json:"data"`
}
