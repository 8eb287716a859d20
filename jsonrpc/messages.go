package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// Message is the raw JSON representation of a single JSON-RPC message.
type Message []byte

// Kind identifies which of the four envelope shapes a message has.
type Kind string

const (
	KindRequest      Kind = "request"
	KindNotification Kind = "notification"
	KindResponse     Kind = "response"
	KindError        Kind = "error"
)

// Envelope is one decoded JSON-RPC message. The set of implementations is
// closed: *Request, *Notification, *Response and *ErrorResponse.
type Envelope interface {
	Kind() Kind
	isEnvelope()
}

// Request represents a JSON-RPC request that expects a response.
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id"`
}

// Notification represents a JSON-RPC request without an id.
type Notification struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
}

// Response represents a successful JSON-RPC response.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result"`
	ID             *RequestID      `json:"id"`
}

// ErrorResponse represents a failed JSON-RPC response.
type ErrorResponse struct {
	JSONRPCVersion string     `json:"jsonrpc"`
	Error          *Error     `json:"error"`
	ID             *RequestID `json:"id"`
}

func (*Request) Kind() Kind       { return KindRequest }
func (*Notification) Kind() Kind  { return KindNotification }
func (*Response) Kind() Kind      { return KindResponse }
func (*ErrorResponse) Kind() Kind { return KindError }

func (*Request) isEnvelope()       {}
func (*Notification) isEnvelope()  {}
func (*Response) isEnvelope()      {}
func (*ErrorResponse) isEnvelope() {}

// NewRequest builds a request envelope, marshalling params when non-nil.
func NewRequest(id *RequestID, method string, params any) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{JSONRPCVersion: ProtocolVersion, Method: method, Params: raw, ID: id}, nil
}

// NewNotification builds a notification envelope, marshalling params when non-nil.
func NewNotification(method string, params any) (*Notification, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Notification{JSONRPCVersion: ProtocolVersion, Method: method, Params: raw}, nil
}

// NewResultResponse builds a successful JSON-RPC response object.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *ErrorResponse {
	return &ErrorResponse{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return b, nil
}

// AnyMessage is a generic JSON-RPC message (request, notification, or response)
// as it appears on the wire, before classification.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// UnmarshalJSON implements custom JSON unmarshaling for AnyMessage
// It enforces JSON-RPC 2.0 semantics and validates message structure
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	type rawMessage struct {
		JSONRPCVersion string          `json:"jsonrpc"`
		Method         string          `json:"method,omitempty"`
		Params         json.RawMessage `json:"params,omitempty"`
		Result         json.RawMessage `json:"result,omitempty"`
		Error          *Error          `json:"error,omitempty"`
		ID             *RequestID      `json:"id,omitempty"`
	}

	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return &DecodeError{Code: ErrorCodeParseError, Err: err}
		}
		return &DecodeError{Code: ErrorCodeInvalidRequest, Err: err}
	}

	if raw.JSONRPCVersion != ProtocolVersion {
		return invalid("invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, raw.JSONRPCVersion)
	}

	hasMethod := raw.Method != ""
	hasResult := len(raw.Result) > 0
	hasError := raw.Error != nil
	hasID := !raw.ID.IsNil()

	if hasMethod {
		if hasResult || hasError {
			return invalid("request message cannot have result or error fields")
		}
	} else {
		if !hasID {
			return invalid("message has neither method nor id")
		}
		if hasResult && hasError {
			return invalid("response message cannot have both result and error fields")
		}
		if !hasResult && !hasError {
			return invalid("response message must have either result or error field")
		}
	}

	m.JSONRPCVersion = raw.JSONRPCVersion
	m.Method = raw.Method
	m.Params = raw.Params
	m.Result = raw.Result
	m.Error = raw.Error
	m.ID = raw.ID

	return nil
}

func invalid(format string, args ...any) error {
	return &DecodeError{Code: ErrorCodeInvalidRequest, Err: fmt.Errorf(format, args...)}
}

// Type returns the kind of the message based on which fields are present.
func (m *AnyMessage) Type() Kind {
	if m.Method != "" {
		if m.ID.IsNil() {
			return KindNotification
		}
		return KindRequest
	}
	if m.Error != nil {
		return KindError
	}
	return KindResponse
}

// Envelope converts a validated AnyMessage into its typed envelope.
func (m *AnyMessage) Envelope() Envelope {
	switch m.Type() {
	case KindRequest:
		return &Request{JSONRPCVersion: m.JSONRPCVersion, Method: m.Method, Params: m.Params, ID: m.ID}
	case KindNotification:
		return &Notification{JSONRPCVersion: m.JSONRPCVersion, Method: m.Method, Params: m.Params}
	case KindError:
		return &ErrorResponse{JSONRPCVersion: m.JSONRPCVersion, Error: m.Error, ID: m.ID}
	default:
		return &Response{JSONRPCVersion: m.JSONRPCVersion, Result: m.Result, ID: m.ID}
	}
}

// Decode classifies raw bytes as exactly one envelope kind. Errors are always
// of type *DecodeError.
func Decode(data []byte) (Envelope, error) {
	var m AnyMessage
	if err := json.Unmarshal(data, &m); err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, de
		}
		return nil, &DecodeError{Code: ErrorCodeParseError, Err: err}
	}
	return m.Envelope(), nil
}

// Encode serializes an envelope, filling in the version tag when missing.
func Encode(env Envelope) (Message, error) {
	switch e := env.(type) {
	case *Request:
		if e.JSONRPCVersion == "" {
			e.JSONRPCVersion = ProtocolVersion
		}
	case *Notification:
		if e.JSONRPCVersion == "" {
			e.JSONRPCVersion = ProtocolVersion
		}
	case *Response:
		if e.JSONRPCVersion == "" {
			e.JSONRPCVersion = ProtocolVersion
		}
		if len(e.Result) == 0 {
			e.Result = json.RawMessage("null")
		}
	case *ErrorResponse:
		if e.JSONRPCVersion == "" {
			e.JSONRPCVersion = ProtocolVersion
		}
	case nil:
		return nil, errors.New("encode: nil envelope")
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Kind(), err)
	}
	return b, nil
}
