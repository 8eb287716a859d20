package wstransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
	"github.com/ggoodman/mcp-protocol-go/protocol"
)

var (
	// ErrClosed is returned by Send after the transport closed.
	ErrClosed = errors.New("wstransport: transport closed")
	// ErrStarted is returned by a second call to Start.
	ErrStarted = errors.New("wstransport: transport already started")
)

// Transport is one end of a WebSocket connection.
type Transport struct {
	conn    *websocket.Conn
	headers http.Header
	cfg     config

	// writeMu serializes frame writes; gorilla/websocket allows one
	// concurrent writer.
	writeMu sync.Mutex

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	hmu sync.Mutex
	h   protocol.Handlers
}

var _ protocol.Transport = (*Transport)(nil)

func newTransport(conn *websocket.Conn, headers http.Header, cfg config) *Transport {
	return &Transport{conn: conn, headers: headers, cfg: cfg, done: make(chan struct{})}
}

// Dial opens a WebSocket connection to url.
func Dial(ctx context.Context, url string, opts ...Option) (*Transport, error) {
	cfg := newConfig(opts)
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{Subprotocol},
	}
	conn, resp, err := dialer.DialContext(ctx, url, cfg.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newTransport(conn, resp.Header, cfg), nil
}

// Accept upgrades an HTTP request to a WebSocket connection. On failure the
// upgrader has already replied to the client.
func Accept(w http.ResponseWriter, r *http.Request, opts ...Option) (*Transport, error) {
	cfg := newConfig(opts)
	up := websocket.Upgrader{
		Subprotocols: []string{Subprotocol},
		CheckOrigin:  cfg.checkOrigin,
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	return newTransport(conn, r.Header.Clone(), cfg), nil
}

// Handler returns an http.Handler that upgrades each request and passes the
// transport to serve. serve runs on the request goroutine and should return
// once the connection is done.
func Handler(serve func(r *http.Request, t *Transport), opts ...Option) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, err := Accept(w, r, opts...)
		if err != nil {
			newConfig(opts).logger.WarnContext(r.Context(), "wstransport.accept.fail",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("err", err.Error()),
			)
			return
		}
		serve(r, t)
	})
}

// Headers returns the headers of the opening handshake: the request headers
// on the accepting side and the response headers on the dialing side.
func (t *Transport) Headers() http.Header { return t.headers }

// Start launches the read loop.
func (t *Transport) Start(ctx context.Context, h protocol.Handlers) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	t.hmu.Lock()
	t.h = h
	t.hmu.Unlock()

	t.conn.SetReadLimit(t.cfg.maxMessageSize)
	go t.readLoop(h)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-t.done:
		}
	}()
	return nil
}

func (t *Transport) readLoop(h protocol.Handlers) {
	defer func() { _ = t.Close() }()

	extra := protocol.MessageExtra{Headers: t.headers}
	for {
		mt, data, err := t.conn.ReadMessage()
		if err != nil {
			if !t.closed.Load() && websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				t.cfg.logger.Warn("wstransport.read.fail", slog.String("err", err.Error()))
				if h.OnError != nil {
					h.OnError(fmt.Errorf("wstransport read: %w", err))
				}
			}
			return
		}
		if mt != websocket.TextMessage {
			if h.OnError != nil {
				h.OnError(fmt.Errorf("wstransport: unsupported frame type %d", mt))
			}
			continue
		}
		env, err := jsonrpc.Decode(data)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			continue
		}
		h.OnMessage(env, extra)
	}
}

// Send writes env as one text frame.
func (t *Transport) Send(_ context.Context, env jsonrpc.Envelope, _ protocol.SendOptions) error {
	if t.closed.Load() {
		return ErrClosed
	}
	b, err := jsonrpc.Encode(env)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.cfg.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.cfg.writeTimeout))
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("wstransport write: %w", err)
	}
	return nil
}

// Close sends a close frame and closes the connection. It is idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)

		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = t.conn.Close()

		t.hmu.Lock()
		h := t.h
		t.hmu.Unlock()
		if h.OnClose != nil {
			h.OnClose()
		}
	})
	return err
}
