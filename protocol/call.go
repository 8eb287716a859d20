package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ggoodman/mcp-protocol-go/internal/schema"
	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

// Decoder turns a raw result payload into a typed value.
type Decoder[T any] func(raw json.RawMessage) (T, error)

// JSONDecoder decodes results with encoding/json and no further checks.
func JSONDecoder[T any]() Decoder[T] {
	return func(raw json.RawMessage) (T, error) {
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, err
		}
		return out, nil
	}
}

// SchemaDecoder checks that the result has the shape of T, including fields
// tagged jsonschema:"required", before decoding it.
func SchemaDecoder[T any]() Decoder[T] {
	return schema.Decode[T]
}

// Call sends a request and decodes its result as T using SchemaDecoder.
func Call[T any](ctx context.Context, p *Protocol, method string, params any, opts ...RequestOption) (T, error) {
	return CallWith(ctx, p, SchemaDecoder[T](), method, params, opts...)
}

// CallWith sends a request and decodes its result with dec.
func CallWith[T any](ctx context.Context, p *Protocol, dec Decoder[T], method string, params any, opts ...RequestOption) (T, error) {
	var zero T
	raw, err := p.Request(ctx, method, params, opts...)
	if err != nil {
		return zero, err
	}
	out, err := dec(raw)
	if err != nil {
		return zero, fmt.Errorf("decode %s result: %w", method, err)
	}
	return out, nil
}

// TypedHandler adapts fn into a RequestHandler that decodes the params as P.
// Params that do not decode fail with InvalidParams.
func TypedHandler[P, R any](fn func(ctx context.Context, rc *RequestContext, params P) (R, error)) RequestHandler {
	return func(ctx context.Context, rc *RequestContext) (any, error) {
		var params P
		if len(rc.Params) > 0 && string(rc.Params) != "null" {
			if err := json.Unmarshal(rc.Params, &params); err != nil {
				return nil, &jsonrpc.Error{Code: jsonrpc.ErrorCodeInvalidParams, Message: fmt.Sprintf("invalid params for %s: %v", rc.Method, err)}
			}
		}
		return fn(ctx, rc, params)
	}
}

// TypedNotificationHandler adapts fn into a NotificationHandler that decodes
// the params as P.
func TypedNotificationHandler[P any](fn func(ctx context.Context, params P) error) NotificationHandler {
	return func(ctx context.Context, n *jsonrpc.Notification) error {
		var params P
		if len(n.Params) > 0 && string(n.Params) != "null" {
			if err := json.Unmarshal(n.Params, &params); err != nil {
				return fmt.Errorf("decode %s params: %w", n.Method, err)
			}
		}
		return fn(ctx, params)
	}
}
