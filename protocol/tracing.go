package protocol

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ggoodman/mcp-protocol-go/protocol"

func (p *Protocol) startSpan(ctx context.Context, kind trace.SpanKind, method, id string) (context.Context, trace.Span) {
	if !p.opts.tracing {
		return ctx, trace.SpanFromContext(ctx)
	}
	return otel.Tracer(tracerName).Start(ctx, method,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", method),
			attribute.String("rpc.jsonrpc.request_id", id),
			attribute.String("mcp.peer", p.opts.name),
		),
	)
}

// endSpan finishes a span started by startSpan. Spans that were not created
// by startSpan are left alone.
func (p *Protocol) endSpan(span trace.Span, err error) {
	if !p.opts.tracing {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
