package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

var (
	// ErrNotConnected is returned when sending without a connected transport.
	ErrNotConnected = errors.New("protocol: not connected")
	// ErrAlreadyConnected is returned by Connect when a transport is attached.
	ErrAlreadyConnected = errors.New("protocol: already connected")
	// ErrConnectionClosed matches the error every in-flight request receives
	// when the transport closes.
	ErrConnectionClosed = errors.New("protocol: connection closed")
	// ErrHandlerExists is returned when registering a second handler for a method.
	ErrHandlerExists = errors.New("protocol: handler already registered")
	// ErrRequestTimeout matches every *TimeoutError.
	ErrRequestTimeout = errors.New("protocol: request timed out")
)

// rpcError is implemented by errors that know how to present themselves
// on the wire.
type rpcError interface {
	JSONRPCError() *jsonrpc.Error
}

// TimeoutError reports that an outbound request was not answered in time.
type TimeoutError struct {
	Method    string
	RequestID int64
	// Timeout is the per-quiet-period limit that applied to the request.
	Timeout time.Duration
	// MaxTotalTimeout is the cumulative cap, zero when none was configured.
	MaxTotalTimeout time.Duration
	// Elapsed is the time since the request was first sent.
	Elapsed time.Duration
	// MaxTotalExceeded is set when the cumulative cap, rather than the
	// quiet-period timer, ended the request.
	MaxTotalExceeded bool
}

func (e *TimeoutError) Error() string {
	if e.MaxTotalExceeded {
		return fmt.Sprintf("request %d (%s): maximum total timeout exceeded: %s (elapsed %s)", e.RequestID, e.Method, e.MaxTotalTimeout, e.Elapsed)
	}
	return fmt.Sprintf("request %d (%s) timed out after %s", e.RequestID, e.Method, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrRequestTimeout }

// Data returns the configured limits in milliseconds, as sent on the wire.
func (e *TimeoutError) Data() map[string]any {
	d := map[string]any{"timeout": e.Timeout.Milliseconds()}
	if e.MaxTotalTimeout > 0 {
		d["maxTotalTimeout"] = e.MaxTotalTimeout.Milliseconds()
		d["totalElapsed"] = e.Elapsed.Milliseconds()
	}
	return d
}

func (e *TimeoutError) JSONRPCError() *jsonrpc.Error {
	msg := "Request timed out"
	if e.MaxTotalExceeded {
		msg = "Maximum total timeout exceeded"
	}
	return &jsonrpc.Error{Code: jsonrpc.ErrorCodeRequestTimeout, Message: msg, Data: e.Data()}
}

// CancelledError reports that a request was abandoned before it settled,
// either by the local caller or by the peer.
type CancelledError struct {
	RequestID *jsonrpc.RequestID
	Reason    string
	Cause     error
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("request %s cancelled", e.RequestID.String())
	}
	return fmt.Sprintf("request %s cancelled: %s", e.RequestID.String(), e.Reason)
}

func (e *CancelledError) Unwrap() error { return e.Cause }

func (e *CancelledError) JSONRPCError() *jsonrpc.Error {
	return &jsonrpc.Error{Code: jsonrpc.ErrorCodeInternalError, Message: e.Error()}
}

// CapabilityError reports that a method is not covered by the negotiated
// capabilities.
type CapabilityError struct {
	Method     string
	Capability string
	// Peer is true when the missing capability belongs to the remote side.
	Peer bool
}

func (e *CapabilityError) Error() string {
	side := "local"
	if e.Peer {
		side = "peer"
	}
	return fmt.Sprintf("%s does not support %s (required for %s)", side, e.Capability, e.Method)
}

// ProtocolError describes a protocol violation that does not end the
// connection, such as a response for an unknown id.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err) }

func (e *ProtocolError) Unwrap() error { return e.Err }

func connectionClosedError() error {
	return fmt.Errorf("%w: %w", ErrConnectionClosed, &jsonrpc.Error{Code: jsonrpc.ErrorCodeConnectionClosed, Message: "Connection closed"})
}

// toWireError converts a handler error into the error object sent back to
// the peer.
func toWireError(err error) *jsonrpc.Error {
	var je *jsonrpc.Error
	if errors.As(err, &je) {
		if je.Code.IsSafe() {
			return je
		}
		return &jsonrpc.Error{Code: jsonrpc.ErrorCodeInternalError, Message: je.Message, Data: je.Data}
	}
	var re rpcError
	if errors.As(err, &re) {
		if we := re.JSONRPCError(); we != nil && we.Code.IsSafe() {
			return we
		}
	}
	return &jsonrpc.Error{Code: jsonrpc.ErrorCodeInternalError, Message: err.Error()}
}
