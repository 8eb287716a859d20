package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Middleware wraps a request handler.
type Middleware func(next RequestHandler) RequestHandler

// Chain composes middleware so that the first argument is the outermost.
func Chain(mw ...Middleware) Middleware {
	return func(next RequestHandler) RequestHandler {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

// Logging logs every handled request with its outcome and duration.
func Logging(log *slog.Logger) Middleware {
	if log == nil {
		log = slog.Default()
	}
	return func(next RequestHandler) RequestHandler {
		return func(ctx context.Context, rc *RequestContext) (any, error) {
			start := time.Now()
			res, err := next(ctx, rc)
			attrs := []any{
				slog.String("method", rc.Method),
				slog.String("id", rc.ID.String()),
				slog.Int64("dur_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				log.WarnContext(ctx, "middleware.request.err", append(attrs, slog.String("err", err.Error()))...)
			} else {
				log.DebugContext(ctx, "middleware.request.ok", attrs...)
			}
			return res, err
		}
	}
}

// RateLimit admits at most r requests per second with the given burst. A
// request waits for a token; it fails when its context ends first.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next RequestHandler) RequestHandler {
		return func(ctx context.Context, rc *RequestContext) (any, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
			return next(ctx, rc)
		}
	}
}

// Timeout bounds how long a handler may run. The handler observes the
// deadline through its context.
func Timeout(d time.Duration) Middleware {
	return func(next RequestHandler) RequestHandler {
		return func(ctx context.Context, rc *RequestContext) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, rc)
		}
	}
}
