package protocol

import (
	"context"
	"net/http"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

// Transport is a duplex channel that delivers whole, ordered messages.
// Framing is the transport's concern; the Protocol only sees envelopes.
//
// Implementations must serialize concurrent calls to Send so that messages
// reach the peer in the order Send was invoked, and must decode inbound bytes
// at their boundary, reporting undecodable input to Handlers.OnError.
type Transport interface {
	// Start begins delivering inbound messages to h. It must not block beyond
	// the setup of the read loop.
	Start(ctx context.Context, h Handlers) error
	// Send writes one envelope to the peer.
	Send(ctx context.Context, env jsonrpc.Envelope, opts SendOptions) error
	// Close shuts the transport down. Handlers.OnClose is invoked once.
	Close() error
}

// Handlers are the callbacks a Transport uses to report inbound traffic.
type Handlers struct {
	OnMessage func(env jsonrpc.Envelope, extra MessageExtra)
	OnError   func(err error)
	OnClose   func()
}

// MessageExtra carries per-message transport metadata.
type MessageExtra struct {
	// SessionID is set by transports that multiplex several logical sessions.
	SessionID string
	// Headers holds the HTTP headers of the request that established the
	// connection, when there was one.
	Headers http.Header
}

// SendOptions carries per-message hints for the transport.
type SendOptions struct {
	// RelatedRequestID is the inbound request this message belongs to, if any.
	RelatedRequestID *jsonrpc.RequestID
}
