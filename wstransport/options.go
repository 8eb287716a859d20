package wstransport

import (
	"log/slog"
	"net/http"
	"time"
)

// Subprotocol is the WebSocket subprotocol offered and accepted.
const Subprotocol = "mcp"

const (
	defaultWriteTimeout   = 10 * time.Second
	defaultMaxMessageSize = 4 << 20
)

// Option configures Dial, Accept and Handler.
type Option func(*config)

type config struct {
	logger         *slog.Logger
	writeTimeout   time.Duration
	maxMessageSize int64
	header         http.Header
	checkOrigin    func(r *http.Request) bool
}

func newConfig(opts []Option) config {
	cfg := config{
		logger:         slog.Default(),
		writeTimeout:   defaultWriteTimeout,
		maxMessageSize: defaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWriteTimeout bounds each frame write. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) { c.writeTimeout = d }
}

// WithMaxMessageSize bounds the size of one inbound frame.
func WithMaxMessageSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxMessageSize = n
		}
	}
}

// WithHeader sets extra headers sent with the opening handshake by Dial.
func WithHeader(h http.Header) Option {
	return func(c *config) { c.header = h }
}

// WithCheckOrigin overrides the origin policy used by Accept. By default
// gorilla/websocket rejects cross-origin browser requests.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(c *config) { c.checkOrigin = fn }
}
