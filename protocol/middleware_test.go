package protocol

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next RequestHandler) RequestHandler {
			return func(ctx context.Context, rc *RequestContext) (any, error) {
				order = append(order, name)
				return next(ctx, rc)
			}
		}
	}
	h := Chain(tag("outer"), tag("inner"))(func(context.Context, *RequestContext) (any, error) {
		order = append(order, "handler")
		return "ok", nil
	})

	res, err := h(context.Background(), &RequestContext{ID: jsonrpc.NewIntRequestID(1), Method: "m"})
	require.NoError(t, err)
	require.Equal(t, "ok", res)
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 1)(func(context.Context, *RequestContext) (any, error) { return "ok", nil })
	rc := &RequestContext{ID: jsonrpc.NewIntRequestID(1), Method: "m"}

	_, err := h(context.Background(), rc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = h(ctx, rc)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limit")
}

func TestTimeoutMiddleware(t *testing.T) {
	h := Timeout(5 * time.Millisecond)(func(ctx context.Context, _ *RequestContext) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err := h(context.Background(), &RequestContext{ID: jsonrpc.NewIntRequestID(1), Method: "m"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	boom := errors.New("boom")
	h := Logging(log)(func(context.Context, *RequestContext) (any, error) { return nil, boom })
	_, err := h(context.Background(), &RequestContext{ID: jsonrpc.NewRequestID("a"), Method: "m"})
	require.ErrorIs(t, err, boom)
}

func TestMiddleware_AppliedToInboundRequests(t *testing.T) {
	client, _, _, _ := connectPair(t, func(s *Protocol) {
		require.NoError(t, s.SetRequestHandler("sum", sumHandler))
	}, nil, []Option{WithMiddleware(func(next RequestHandler) RequestHandler {
		return func(ctx context.Context, rc *RequestContext) (any, error) {
			if rc.Method == "sum" {
				return nil, &jsonrpc.Error{Code: jsonrpc.ErrorCodeInvalidRequest, Message: "blocked"}
			}
			return next(ctx, rc)
		}
	})})

	_, err := client.Request(context.Background(), "sum", map[string]int{"a": 1, "b": 2})
	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, "blocked", rpcErr.Message)

	_, err = client.Request(context.Background(), "ping", nil)
	require.NoError(t, err)
}
