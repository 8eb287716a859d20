package protocol

import (
	"context"
	"encoding/json"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
	"github.com/ggoodman/mcp-protocol-go/mcp"
)

// RequestHandler handles one inbound request. ctx is cancelled when the peer
// cancels the request or the connection closes; context.Cause reports which.
// The returned value is marshalled as the response result.
type RequestHandler func(ctx context.Context, rc *RequestContext) (any, error)

// NotificationHandler handles one inbound notification.
type NotificationHandler func(ctx context.Context, n *jsonrpc.Notification) error

// RequestContext describes an inbound request and lets its handler talk back
// to the peer on behalf of that request.
type RequestContext struct {
	ID     *jsonrpc.RequestID
	Method string
	Params json.RawMessage
	Meta   mcp.RequestMeta
	Extra  MessageExtra

	p *Protocol
}

// SendNotification sends a notification tied to this request.
func (rc *RequestContext) SendNotification(ctx context.Context, method string, params any) error {
	return rc.p.Notify(ctx, method, params, WithRelatedRequestID(rc.ID))
}

// SendRequest sends a request to the peer tied to this request.
func (rc *RequestContext) SendRequest(ctx context.Context, method string, params any, opts ...RequestOption) (json.RawMessage, error) {
	opts = append(opts, WithRelatedRequestID(rc.ID))
	return rc.p.Request(ctx, method, params, opts...)
}

// ReportProgress emits notifications/progress when the peer supplied a
// progress token. Without a token it does nothing. A total of zero or less
// is left off the notification.
func (rc *RequestContext) ReportProgress(ctx context.Context, progress, total float64, message string) error {
	if rc.Meta.ProgressToken.IsNil() {
		return nil
	}
	params := mcp.ProgressNotificationParams{
		ProgressToken: *rc.Meta.ProgressToken,
		Progress:      progress,
		Message:       message,
	}
	if total > 0 {
		params.Total = &total
	}
	return rc.SendNotification(ctx, string(mcp.ProgressNotificationMethod), params)
}

// ProgressReporter emits progress updates for the request being handled.
type ProgressReporter interface {
	Report(ctx context.Context, progress, total float64, message string) error
}

type progressKey struct{}

type requestProgress struct{ rc *RequestContext }

func (r requestProgress) Report(ctx context.Context, progress, total float64, message string) error {
	return r.rc.ReportProgress(ctx, progress, total, message)
}

func withProgressReporter(ctx context.Context, pr ProgressReporter) context.Context {
	return context.WithValue(ctx, progressKey{}, pr)
}

// ProgressFrom retrieves the ProgressReporter of the request being handled.
// It reports false when the peer did not ask for progress.
func ProgressFrom(ctx context.Context) (ProgressReporter, bool) {
	pr, ok := ctx.Value(progressKey{}).(ProgressReporter)
	return pr, ok && pr != nil
}
