// Package protocol implements the bidirectional JSON-RPC dispatcher shared by
// MCP clients and servers.
//
// A Protocol multiplexes concurrent outbound requests, inbound request
// handlers, notifications and progress updates over a single Transport.
// Outbound requests are correlated by a locally allocated integer id and
// settle exactly once: with the peer's response, with a timeout, with a
// cancellation, or with a connection-closed error.
//
//	p := protocol.New(protocol.WithLogger(logger))
//	_ = p.SetRequestHandler("sum", func(ctx context.Context, rc *protocol.RequestContext) (any, error) {
//	    var args struct{ A, B int }
//	    if err := json.Unmarshal(rc.Params, &args); err != nil {
//	        return nil, &jsonrpc.Error{Code: jsonrpc.ErrorCodeInvalidParams, Message: err.Error()}
//	    }
//	    return args.A + args.B, nil
//	})
//	if err := p.Connect(ctx, stdio.New()); err != nil {
//	    return err
//	}
//	<-p.Done()
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/ggoodman/mcp-protocol-go/internal/logctx"
	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
	"github.com/ggoodman/mcp-protocol-go/mcp"
)

// Protocol is one side of a JSON-RPC connection. The zero value is not
// usable; construct one with New.
type Protocol struct {
	opts     options
	log      *slog.Logger
	metrics  *metrics
	calls    *callTable
	debounce *debouncer

	hmu                  sync.RWMutex
	requestHandlers      map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler
	fallbackRequest      RequestHandler
	fallbackNotification NotificationHandler

	mu   sync.Mutex
	conn *conn
}

// conn is the state of one attached transport.
type conn struct {
	id        string
	transport Transport
	ctx       context.Context
	cancel    context.CancelCauseFunc
	queue     *serialQueue
	done      chan struct{}
	closeOnce sync.Once

	// inbound maps in-flight inbound requests to their abort handles. Guarded
	// by Protocol.mu; nil once the connection closed.
	inbound map[string]*inboundCall
}

type inboundCall struct {
	cancel context.CancelCauseFunc
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// New constructs a Protocol. The ping request and the cancelled and progress
// notifications are handled out of the box.
func New(opts ...Option) *Protocol {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Protocol{
		opts:                 o,
		requestHandlers:      make(map[string]RequestHandler),
		notificationHandlers: make(map[string]NotificationHandler),
	}
	p.log = logctx.Wrap(o.logger).With(slog.String("peer", o.name))
	p.metrics = newMetrics(o.registerer, o.name)
	p.calls = newCallTable(o.clock, p.onCallExpired)
	p.debounce = newDebouncer(o.clock, o.debounceInterval, o.debounced)

	p.requestHandlers[string(mcp.PingMethod)] = func(context.Context, *RequestContext) (any, error) {
		return mcp.EmptyResult{}, nil
	}
	return p
}

func isBuiltinNotification(method string) bool {
	return method == string(mcp.CancelledNotificationMethod) || method == string(mcp.ProgressNotificationMethod)
}

// Logger returns the logger used by the Protocol.
func (p *Protocol) Logger() *slog.Logger { return p.log }

// Connect attaches a transport and starts processing its messages. The
// connection keeps the values of ctx, which every inbound handler context
// inherits, but not its cancellation: it lasts until Close or until the
// transport closes.
func (p *Protocol) Connect(ctx context.Context, t Transport) error {
	p.mu.Lock()
	if p.conn != nil {
		p.mu.Unlock()
		return ErrAlreadyConnected
	}
	c := &conn{
		id:        uuid.NewString(),
		transport: t,
		queue:     newSerialQueue(),
		done:      make(chan struct{}),
		inbound:   make(map[string]*inboundCall),
	}
	c.ctx, c.cancel = context.WithCancelCause(logctx.WithConnData(context.WithoutCancel(ctx), &logctx.ConnData{
		ConnID:    c.id,
		Transport: fmt.Sprintf("%T", t),
		Role:      p.opts.name,
	}))
	p.conn = c
	p.mu.Unlock()

	err := t.Start(c.ctx, Handlers{
		OnMessage: func(env jsonrpc.Envelope, extra MessageExtra) { p.onMessage(c, env, extra) },
		OnError:   p.reportError,
		OnClose:   func() { p.onTransportClose(c) },
	})
	if err != nil {
		p.onTransportClose(c)
		return fmt.Errorf("start transport: %w", err)
	}

	p.log.InfoContext(c.ctx, "protocol.connect")
	return nil
}

// Close closes the transport. In-flight requests fail with a connection
// closed error.
func (p *Protocol) Close() error {
	c := p.current()
	if c == nil {
		return nil
	}
	err := c.transport.Close()
	p.onTransportClose(c)
	return err
}

// Done returns a channel that is closed when the current connection closes.
// Without a connection the returned channel is already closed.
func (p *Protocol) Done() <-chan struct{} {
	if c := p.current(); c != nil {
		return c.done
	}
	return closedChan
}

// Connected reports whether a transport is attached.
func (p *Protocol) Connected() bool { return p.current() != nil }

func (p *Protocol) current() *conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

func (p *Protocol) onTransportClose(c *conn) {
	c.closeOnce.Do(func() {
		closedErr := connectionClosedError()

		p.mu.Lock()
		if p.conn == c {
			p.conn = nil
		}
		c.inbound = nil
		p.calls.closeAll(closedErr)
		p.mu.Unlock()

		c.cancel(closedErr)
		p.debounce.reset()
		c.queue.stop()
		close(c.done)

		p.log.InfoContext(c.ctx, "protocol.close")
		if p.opts.onClose != nil {
			p.opts.onClose()
		}
	})
}

func (p *Protocol) reportError(err error) {
	if err == nil {
		return
	}
	p.metrics.errorReported()
	p.log.Warn("protocol.error", slog.String("err", err.Error()))
	if p.opts.onError != nil {
		p.opts.onError(err)
	}
}

// Request sends a request and waits for its response. ctx is the caller's
// cancellation signal: when it ends first, the peer is sent a cancelled
// notification and a *CancelledError is returned.
func (p *Protocol) Request(ctx context.Context, method string, params any, opts ...RequestOption) (json.RawMessage, error) {
	ro := requestOptions{timeout: p.opts.defaultTimeout}
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.timeout <= 0 {
		ro.timeout = p.opts.defaultTimeout
	}

	c := p.current()
	if c == nil {
		return nil, ErrNotConnected
	}
	if p.opts.strict && p.opts.checker != nil {
		if err := p.opts.checker.AssertCapabilityForMethod(method); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Reason: context.Cause(ctx).Error(), Cause: context.Cause(ctx)}
	}

	call := p.calls.register(method, ro.onProgress)
	id := jsonrpc.NewIntRequestID(call.id)

	var raw json.RawMessage
	var err error
	if ro.onProgress != nil {
		raw, err = withProgressToken(params, call.id)
	} else {
		raw, err = marshalParams(params)
	}
	if err != nil {
		p.calls.remove(call.id)
		return nil, err
	}

	ctx, span := p.startSpan(ctx, trace.SpanKindClient, method, id.String())
	start := p.opts.clock.Now()
	p.metrics.requestStarted()

	res, err := p.await(ctx, c, call, &jsonrpc.Request{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		Method:         method,
		Params:         raw,
		ID:             id,
	}, ro)

	p.metrics.requestDone(method, outcomeOf(err), p.opts.clock.Since(start))
	p.endSpan(span, err)
	return res, err
}

func (p *Protocol) await(ctx context.Context, c *conn, call *pendingCall, req *jsonrpc.Request, ro requestOptions) (json.RawMessage, error) {
	p.calls.arm(call.id, ro.timeout, ro.maxTotalTimeout, ro.resetOnProgress)

	if err := c.transport.Send(ctx, req, SendOptions{RelatedRequestID: ro.relatedID}); err != nil {
		if p.calls.remove(call.id) == nil {
			// Settled concurrently, e.g. by a close racing the send.
			res := <-call.done
			return res.result, res.err
		}
		return nil, fmt.Errorf("send %s: %w", req.Method, err)
	}

	select {
	case res := <-call.done:
		return res.result, res.err
	case <-ctx.Done():
		if p.calls.remove(call.id) == nil {
			res := <-call.done
			return res.result, res.err
		}
		cause := context.Cause(ctx)
		p.sendCancelled(context.WithoutCancel(ctx), call.id, cause.Error())
		return nil, &CancelledError{RequestID: req.ID, Reason: cause.Error(), Cause: cause}
	}
}

func (p *Protocol) onCallExpired(call *pendingCall, err *TimeoutError) {
	p.log.Info("protocol.request.timeout",
		slog.String("method", call.method),
		slog.Int64("id", call.id),
		slog.Int64("timeout_ms", err.Timeout.Milliseconds()),
		slog.Bool("max_total", err.MaxTotalExceeded),
	)
	p.sendCancelled(context.Background(), call.id, err.Error())
}

// sendCancelled tells the peer to abandon one of our requests. Failures are
// only logged.
func (p *Protocol) sendCancelled(ctx context.Context, id int64, reason string) {
	c := p.current()
	if c == nil {
		return
	}
	n, err := jsonrpc.NewNotification(string(mcp.CancelledNotificationMethod), mcp.CancelledNotification{
		RequestID: *jsonrpc.NewIntRequestID(id),
		Reason:    reason,
	})
	if err != nil {
		p.reportError(err)
		return
	}
	if err := c.transport.Send(ctx, n, SendOptions{}); err != nil {
		p.log.Debug("protocol.cancelled.send_fail", slog.Int64("id", id), slog.String("err", err.Error()))
		return
	}
	p.metrics.notificationSent(n.Method)
}

// Notify sends a notification. Only WithRelatedRequestID is meaningful among
// the options. Debounce-eligible notifications are queued and coalesced.
func (p *Protocol) Notify(ctx context.Context, method string, params any, opts ...RequestOption) error {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	c := p.current()
	if c == nil {
		return ErrNotConnected
	}
	if p.opts.strict && p.opts.checker != nil {
		if err := p.opts.checker.AssertNotificationCapability(method); err != nil {
			return err
		}
	}

	if p.debounce.eligible(method, hasParams(params), !ro.relatedID.IsNil()) {
		if !p.debounce.schedule(method, func() { p.flushDebounced(method) }) {
			p.metrics.debounced(method)
		}
		return nil
	}

	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	return p.sendNotification(ctx, c, &jsonrpc.Notification{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		Method:         method,
		Params:         raw,
	}, ro.relatedID)
}

func (p *Protocol) flushDebounced(method string) {
	c := p.current()
	if c == nil {
		p.log.Debug("protocol.debounce.drop", slog.String("method", method))
		return
	}
	n := &jsonrpc.Notification{JSONRPCVersion: jsonrpc.ProtocolVersion, Method: method}
	if err := p.sendNotification(c.ctx, c, n, nil); err != nil {
		p.reportError(err)
	}
}

func (p *Protocol) sendNotification(ctx context.Context, c *conn, n *jsonrpc.Notification, related *jsonrpc.RequestID) error {
	if err := c.transport.Send(ctx, n, SendOptions{RelatedRequestID: related}); err != nil {
		return fmt.Errorf("send %s: %w", n.Method, err)
	}
	p.metrics.notificationSent(n.Method)
	return nil
}

func (p *Protocol) onMessage(c *conn, env jsonrpc.Envelope, extra MessageExtra) {
	if p.current() != c {
		return
	}
	switch e := env.(type) {
	case *jsonrpc.Response:
		p.handleResponse(e.ID, callResult{result: e.Result})
	case *jsonrpc.ErrorResponse:
		p.handleResponse(e.ID, callResult{err: e.Error})
	case *jsonrpc.Request:
		p.handleRequest(c, e, extra)
	case *jsonrpc.Notification:
		p.handleNotification(c, e)
	default:
		p.reportError(&ProtocolError{Op: "classify", Err: fmt.Errorf("unexpected envelope %T", env)})
	}
}

func (p *Protocol) handleResponse(id *jsonrpc.RequestID, res callResult) {
	n, ok := id.Int64()
	if !ok || !p.calls.settle(n, res) {
		p.reportError(&ProtocolError{Op: "response", Err: fmt.Errorf("response for unknown id %q", id.String())})
	}
}

func (p *Protocol) handleRequest(c *conn, req *jsonrpc.Request, extra MessageExtra) {
	p.hmu.RLock()
	handler, ok := p.requestHandlers[req.Method]
	if !ok {
		handler = p.fallbackRequest
	}
	p.hmu.RUnlock()

	if handler == nil {
		p.log.InfoContext(c.ctx, "protocol.handle_request.unsupported", slog.String("method", req.Method))
		resp := jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "Method not found", nil)
		if err := c.transport.Send(c.ctx, resp, SendOptions{RelatedRequestID: req.ID}); err != nil {
			p.reportError(fmt.Errorf("send method not found: %w", err))
		}
		return
	}

	rc := &RequestContext{
		ID:     req.ID,
		Method: req.Method,
		Params: req.Params,
		Meta:   requestMeta(req.Params),
		Extra:  extra,
		p:      p,
	}

	ctx, cancel := context.WithCancelCause(c.ctx)
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: "request"})
	if !rc.Meta.ProgressToken.IsNil() {
		ctx = withProgressReporter(ctx, requestProgress{rc: rc})
	}

	ic := &inboundCall{cancel: cancel}
	key := inboundKey(req.ID)
	p.mu.Lock()
	if c.inbound == nil {
		p.mu.Unlock()
		cancel(connectionClosedError())
		return
	}
	c.inbound[key] = ic
	p.mu.Unlock()

	if len(p.opts.middleware) > 0 {
		handler = Chain(p.opts.middleware...)(handler)
	}

	go p.runHandler(ctx, c, key, ic, rc, handler)
}

func (p *Protocol) runHandler(ctx context.Context, c *conn, key string, ic *inboundCall, rc *RequestContext, handler RequestHandler) {
	defer ic.cancel(nil)

	start := p.opts.clock.Now()
	spanCtx, span := p.startSpan(ctx, trace.SpanKindServer, rc.Method, rc.ID.String())
	result, err := p.invoke(spanCtx, handler, rc)
	p.endSpan(span, err)
	dur := p.opts.clock.Since(start)

	p.mu.Lock()
	if c.inbound != nil && c.inbound[key] == ic {
		delete(c.inbound, key)
	}
	p.mu.Unlock()

	if ctx.Err() != nil {
		p.metrics.handled(rc.Method, "aborted", dur)
		p.log.InfoContext(ctx, "protocol.handle_request.aborted",
			slog.String("cause", context.Cause(ctx).Error()),
			slog.Int64("dur_ms", dur.Milliseconds()),
		)
		return
	}

	var resp jsonrpc.Envelope
	if err == nil {
		if result == nil {
			result = struct{}{}
		}
		resp, err = jsonrpc.NewResultResponse(rc.ID, result)
	}
	if err != nil {
		we := toWireError(err)
		resp = &jsonrpc.ErrorResponse{JSONRPCVersion: jsonrpc.ProtocolVersion, Error: we, ID: rc.ID}
		p.metrics.handled(rc.Method, "error", dur)
		p.log.InfoContext(ctx, "protocol.handle_request.fail",
			slog.String("err", err.Error()),
			slog.Int("code", int(we.Code)),
			slog.Int64("dur_ms", dur.Milliseconds()),
		)
	} else {
		p.metrics.handled(rc.Method, "ok", dur)
		p.log.InfoContext(ctx, "protocol.handle_request.ok", slog.Int64("dur_ms", dur.Milliseconds()))
	}

	if err := c.transport.Send(ctx, resp, SendOptions{RelatedRequestID: rc.ID}); err != nil {
		p.reportError(fmt.Errorf("send response for %s: %w", rc.Method, err))
	}
}

// invoke runs a handler, converting a panic into an internal error.
func (p *Protocol) invoke(ctx context.Context, h RequestHandler, rc *RequestContext) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.ErrorContext(ctx, "protocol.handle_request.panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			result = nil
			err = &jsonrpc.Error{Code: jsonrpc.ErrorCodeInternalError, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return h(ctx, rc)
}

func (p *Protocol) handleNotification(c *conn, n *jsonrpc.Notification) {
	switch n.Method {
	case string(mcp.CancelledNotificationMethod):
		p.handleCancelled(c, n)
		return
	case string(mcp.ProgressNotificationMethod):
		p.handleProgress(n)
		return
	}

	p.hmu.RLock()
	handler, ok := p.notificationHandlers[n.Method]
	if !ok {
		handler = p.fallbackNotification
	}
	p.hmu.RUnlock()

	if handler == nil {
		p.log.DebugContext(c.ctx, "protocol.notification.drop", slog.String("method", n.Method))
		return
	}

	c.queue.push(func() {
		ctx := logctx.WithRPCMessage(c.ctx, &logctx.RPCMessage{Method: n.Method, Type: "notification"})
		if err := p.invokeNotification(ctx, handler, n); err != nil {
			p.reportError(&ProtocolError{Op: "notification " + n.Method, Err: err})
		}
	})
}

func (p *Protocol) invokeNotification(ctx context.Context, h NotificationHandler, n *jsonrpc.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, n)
}

func (p *Protocol) handleCancelled(c *conn, n *jsonrpc.Notification) {
	var params mcp.CancelledNotification
	if err := json.Unmarshal(n.Params, &params); err != nil {
		p.reportError(&ProtocolError{Op: "cancelled", Err: err})
		return
	}

	p.mu.Lock()
	var ic *inboundCall
	if c.inbound != nil {
		ic = c.inbound[inboundKey(&params.RequestID)]
	}
	p.mu.Unlock()

	if ic == nil {
		p.log.DebugContext(c.ctx, "protocol.cancelled.unknown", slog.String("id", params.RequestID.String()))
		return
	}
	p.log.InfoContext(c.ctx, "protocol.cancelled",
		slog.String("id", params.RequestID.String()),
		slog.String("reason", params.Reason),
	)
	id := params.RequestID
	ic.cancel(&CancelledError{RequestID: &id, Reason: params.Reason, Cause: context.Canceled})
}

func (p *Protocol) handleProgress(n *jsonrpc.Notification) {
	var params mcp.ProgressNotificationParams
	if err := json.Unmarshal(n.Params, &params); err != nil {
		p.reportError(&ProtocolError{Op: "progress", Err: err})
		return
	}

	id, ok := params.ProgressToken.Int64()
	var call *pendingCall
	var err error
	if ok {
		call, err = p.calls.progress(id)
	}
	if call == nil {
		p.reportError(&ProtocolError{Op: "progress", Err: fmt.Errorf("progress notification for unknown token %q", params.ProgressToken.String())})
		return
	}
	if err != nil {
		p.log.Info("protocol.request.timeout",
			slog.String("method", call.method),
			slog.Int64("id", call.id),
			slog.Bool("max_total", true),
		)
		p.sendCancelled(context.Background(), call.id, err.Error())
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.reportError(&ProtocolError{Op: "progress", Err: fmt.Errorf("progress callback panic: %v", r)})
		}
	}()
	call.onProgress(params)
}

// SetRequestHandler registers the handler for method. Registering a second
// handler for the same method fails with ErrHandlerExists.
func (p *Protocol) SetRequestHandler(method string, h RequestHandler) error {
	if p.opts.checker != nil {
		if err := p.opts.checker.AssertRequestHandlerCapability(method); err != nil {
			return err
		}
	}
	p.hmu.Lock()
	defer p.hmu.Unlock()
	if _, ok := p.requestHandlers[method]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, method)
	}
	p.requestHandlers[method] = h
	return nil
}

// AssertCanSetRequestHandler reports ErrHandlerExists when method already has
// a handler.
func (p *Protocol) AssertCanSetRequestHandler(method string) error {
	p.hmu.RLock()
	defer p.hmu.RUnlock()
	if _, ok := p.requestHandlers[method]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, method)
	}
	return nil
}

// RemoveRequestHandler unregisters the handler for method, if any.
func (p *Protocol) RemoveRequestHandler(method string) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	delete(p.requestHandlers, method)
}

// SetNotificationHandler registers the handler for method. Handlers run one
// at a time in arrival order, off the transport's delivery goroutine.
func (p *Protocol) SetNotificationHandler(method string, h NotificationHandler) error {
	if isBuiltinNotification(method) {
		return fmt.Errorf("%w: %s is handled by the protocol", ErrHandlerExists, method)
	}
	p.hmu.Lock()
	defer p.hmu.Unlock()
	if _, ok := p.notificationHandlers[method]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, method)
	}
	p.notificationHandlers[method] = h
	return nil
}

// RemoveNotificationHandler unregisters the handler for method, if any.
func (p *Protocol) RemoveNotificationHandler(method string) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	delete(p.notificationHandlers, method)
}

// SetFallbackRequestHandler handles requests for methods without a handler.
func (p *Protocol) SetFallbackRequestHandler(h RequestHandler) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.fallbackRequest = h
}

// SetFallbackNotificationHandler handles notifications for methods without a
// handler.
func (p *Protocol) SetFallbackNotificationHandler(h NotificationHandler) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.fallbackNotification = h
}

func inboundKey(id *jsonrpc.RequestID) string {
	switch id.Value().(type) {
	case int64:
		return "n:" + id.String()
	default:
		return "s:" + id.String()
	}
}

func requestMeta(params json.RawMessage) mcp.RequestMeta {
	var holder struct {
		Meta mcp.RequestMeta `json:"_meta"`
	}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &holder)
	}
	return holder.Meta
}

func hasParams(params any) bool {
	switch v := params.(type) {
	case nil:
		return false
	case json.RawMessage:
		return len(v) > 0
	}
	return true
}

func marshalParams(params any) (json.RawMessage, error) {
	switch v := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return b, nil
}

// withProgressToken marshals params and sets _meta.progressToken to id,
// keeping any other _meta entries.
func withProgressToken(params any, id int64) (json.RawMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	obj := map[string]json.RawMessage{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("params must be a JSON object to carry a progress token: %w", err)
		}
	}
	meta := map[string]json.RawMessage{}
	if m, ok := obj["_meta"]; ok && string(m) != "null" {
		if err := json.Unmarshal(m, &meta); err != nil {
			return nil, fmt.Errorf("params._meta must be a JSON object: %w", err)
		}
	}
	meta["progressToken"] = json.RawMessage(strconv.FormatInt(id, 10))
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	obj["_meta"] = metaRaw
	return json.Marshal(obj)
}

func outcomeOf(err error) string {
	var te *TimeoutError
	var ce *CancelledError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &ce):
		return "cancelled"
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	default:
		return "error"
	}
}
