package jsonrpc

import "fmt"

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603

	// ErrorCodeConnectionClosed is reported for requests that were in flight
	// when the underlying transport closed.
	ErrorCodeConnectionClosed ErrorCode = -32000
	// ErrorCodeRequestTimeout is reported for requests that did not receive a
	// response within the configured limits.
	ErrorCodeRequestTimeout ErrorCode = -32001
)

// maxSafeInteger is the largest integer that survives a round trip through
// an IEEE-754 double, which is what most peers decode error codes into.
const maxSafeInteger = 1<<53 - 1

// IsSafe reports whether the code can be sent on the wire without loss.
func (c ErrorCode) IsSafe() bool {
	return int64(c) >= -maxSafeInteger && int64(c) <= maxSafeInteger
}

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeParseError:
		return "parse error"
	case ErrorCodeInvalidRequest:
		return "invalid request"
	case ErrorCodeMethodNotFound:
		return "method not found"
	case ErrorCodeInvalidParams:
		return "invalid params"
	case ErrorCodeInternalError:
		return "internal error"
	case ErrorCodeConnectionClosed:
		return "connection closed"
	case ErrorCodeRequestTimeout:
		return "request timeout"
	}
	return fmt.Sprintf("code %d", int(c))
}

// Error is a JSON-RPC error object. It doubles as a Go error so that values
// decoded from an ErrorResponse can be returned to callers unchanged.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", int(e.Code), e.Message)
}

// DecodeError is returned by Decode when bytes cannot be classified as one of
// the four envelope kinds.
type DecodeError struct {
	Code ErrorCode
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: %s: %v", e.Code, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
