package protocol

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

// DefaultRequestTimeout applies to outbound requests that set no timeout.
const DefaultRequestTimeout = 60 * time.Second

// DefaultDebounceInterval is how long a debounced notification waits before
// it is flushed.
const DefaultDebounceInterval = time.Millisecond

// Option configures a Protocol.
type Option func(*options)

type options struct {
	name             string
	logger           *slog.Logger
	clock            clock.Clock
	defaultTimeout   time.Duration
	strict           bool
	checker          CapabilityChecker
	debounced        []string
	debounceInterval time.Duration
	onError          func(error)
	onClose          func()
	registerer       prometheus.Registerer
	middleware       []Middleware
	tracing          bool
}

func defaultOptions() options {
	return options{
		name:             "protocol",
		logger:           slog.Default(),
		clock:            clock.New(),
		defaultTimeout:   DefaultRequestTimeout,
		debounceInterval: DefaultDebounceInterval,
	}
}

// WithName labels log records, metrics and spans of this Protocol, e.g.
// "client" or "server".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces the wall clock used for timeouts and debouncing.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithDefaultTimeout changes the timeout of requests that set none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultTimeout = d
		}
	}
}

// WithEnforceStrictCapabilities makes outbound requests and notifications
// fail when the negotiated capabilities do not cover the method.
func WithEnforceStrictCapabilities(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithCapabilityChecker installs the capability rules consulted before
// sending and when registering request handlers.
func WithCapabilityChecker(c CapabilityChecker) Option {
	return func(o *options) { o.checker = c }
}

// WithDebouncedNotificationMethods marks notification methods whose
// parameterless sends are coalesced.
func WithDebouncedNotificationMethods(methods ...string) Option {
	return func(o *options) { o.debounced = append(o.debounced, methods...) }
}

// WithDebounceInterval sets how long a debounced notification is held.
func WithDebounceInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounceInterval = d
		}
	}
}

// WithOnError installs the error sink. Protocol violations, transport errors
// and notification handler failures are reported here.
func WithOnError(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithOnClose installs a hook that runs once each time the connection closes.
func WithOnClose(fn func()) Option {
	return func(o *options) { o.onClose = fn }
}

// WithMetrics registers Prometheus collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithMiddleware wraps every inbound request handler.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mw...) }
}

// WithTracing creates OpenTelemetry spans for outbound requests using the
// global tracer provider.
func WithTracing() Option {
	return func(o *options) { o.tracing = true }
}

// RequestOption configures a single outbound request or notification.
type RequestOption func(*requestOptions)

type requestOptions struct {
	timeout         time.Duration
	maxTotalTimeout time.Duration
	resetOnProgress bool
	onProgress      ProgressFunc
	relatedID       *jsonrpc.RequestID
}

// WithTimeout sets the per-quiet-period timeout of a request.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.timeout = d }
}

// WithMaxTotalTimeout caps the total duration of a request regardless of
// progress.
func WithMaxTotalTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.maxTotalTimeout = d }
}

// WithResetTimeoutOnProgress restarts the timeout whenever progress arrives.
func WithResetTimeoutOnProgress() RequestOption {
	return func(o *requestOptions) { o.resetOnProgress = true }
}

// WithProgress asks the peer for progress updates and delivers them to fn.
func WithProgress(fn ProgressFunc) RequestOption {
	return func(o *requestOptions) { o.onProgress = fn }
}

// WithRelatedRequestID ties the message to an inbound request. It applies to
// both requests and notifications.
func WithRelatedRequestID(id *jsonrpc.RequestID) RequestOption {
	return func(o *requestOptions) { o.relatedID = id }
}
