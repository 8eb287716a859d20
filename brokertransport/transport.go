package brokertransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/mcp-protocol-go/broker"
	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
	"github.com/ggoodman/mcp-protocol-go/protocol"
)

var (
	// ErrClosed is returned by Send after the transport closed.
	ErrClosed = errors.New("brokertransport: transport closed")
	// ErrStarted is returned by a second call to Start.
	ErrStarted = errors.New("brokertransport: transport already started")
)

// Option customizes a Transport.
type Option func(*Transport)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.l = l
		}
	}
}

// WithSessionID sets the MessageExtra.SessionID reported for every inbound
// envelope.
func WithSessionID(id string) Option {
	return func(t *Transport) { t.sessionID = id }
}

// WithCleanupTimeout bounds the inbox cleanup performed by Close.
func WithCleanupTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.cleanupTimeout = d
		}
	}
}

// Transport is a protocol.Transport backed by two broker namespaces.
type Transport struct {
	b              broker.Broker
	inbox          string
	outbox         string
	sessionID      string
	cleanupTimeout time.Duration
	l              *slog.Logger

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once

	mu     sync.Mutex
	cancel context.CancelFunc
	h      protocol.Handlers
}

var _ protocol.Transport = (*Transport)(nil)

// New returns a Transport that receives from inbox and sends to outbox.
func New(b broker.Broker, inbox, outbox string, opts ...Option) *Transport {
	t := &Transport{
		b:              b,
		inbox:          inbox,
		outbox:         outbox,
		cleanupTimeout: 5 * time.Second,
		l:              slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Pair returns two cross-wired transports for a session named name. The
// first is meant for the client and the second for the server.
func Pair(b broker.Broker, name string, opts ...Option) (client, server *Transport) {
	toServer := name + ":c2s"
	toClient := name + ":s2c"
	opts = append([]Option{WithSessionID(name)}, opts...)
	return New(b, toClient, toServer, opts...), New(b, toServer, toClient, opts...)
}

// Inbox returns the namespace this transport reads from.
func (t *Transport) Inbox() string { return t.inbox }

// Outbox returns the namespace this transport publishes to.
func (t *Transport) Outbox() string { return t.outbox }

// Start subscribes to the inbox. The transport closes when ctx ends or the
// subscription fails.
func (t *Transport) Start(ctx context.Context, h protocol.Handlers) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	if t.closed.Load() {
		return ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.h = h
	t.cancel = cancel
	t.mu.Unlock()

	go t.readLoop(subCtx, h)
	return nil
}

func (t *Transport) readLoop(ctx context.Context, h protocol.Handlers) {
	defer func() { _ = t.Close() }()

	extra := protocol.MessageExtra{SessionID: t.sessionID}
	err := t.b.Subscribe(ctx, t.inbox, broker.FromBeginning, func(_ context.Context, msg broker.MessageEnvelope) error {
		env, err := jsonrpc.Decode(msg.Data)
		if err != nil {
			t.l.Debug("brokertransport.read.decode_fail",
				slog.String("inbox", t.inbox),
				slog.String("event_id", msg.ID),
				slog.String("err", err.Error()))
			if h.OnError != nil {
				h.OnError(err)
			}
			return nil
		}
		h.OnMessage(env, extra)
		return nil
	})

	if err == nil || t.closed.Load() || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	t.l.Warn("brokertransport.subscribe.fail", slog.String("inbox", t.inbox), slog.String("err", err.Error()))
	if h.OnError != nil {
		h.OnError(fmt.Errorf("broker subscribe %s: %w", t.inbox, err))
	}
}

// Send publishes env to the outbox.
func (t *Transport) Send(ctx context.Context, env jsonrpc.Envelope, _ protocol.SendOptions) error {
	if t.closed.Load() {
		return ErrClosed
	}
	b, err := jsonrpc.Encode(env)
	if err != nil {
		return err
	}
	if _, err := t.b.Publish(ctx, t.outbox, b); err != nil {
		return fmt.Errorf("broker publish %s: %w", t.outbox, err)
	}
	return nil
}

// Close ends the subscription and removes the inbox namespace. Close is
// idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)

		t.mu.Lock()
		cancel := t.cancel
		h := t.h
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		ctx, done := context.WithTimeout(context.Background(), t.cleanupTimeout)
		defer done()
		if cerr := t.b.Cleanup(ctx, t.inbox); cerr != nil {
			err = fmt.Errorf("broker cleanup %s: %w", t.inbox, cerr)
		}

		if h.OnClose != nil {
			h.OnClose()
		}
	})
	return err
}
