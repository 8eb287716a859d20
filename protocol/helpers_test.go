package protocol

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
)

// fakeTransport records outbound envelopes and lets tests inject inbound
// ones synchronously.
type fakeTransport struct {
	mu      sync.Mutex
	h       Handlers
	closed  bool
	sendErr error
	sent    chan jsonrpc.Envelope
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(chan jsonrpc.Envelope, 1024)}
}

func (t *fakeTransport) Start(_ context.Context, h Handlers) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.h = h
	return nil
}

func (t *fakeTransport) Send(_ context.Context, env jsonrpc.Envelope, _ SendOptions) error {
	t.mu.Lock()
	closed, err := t.closed, t.sendErr
	t.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}
	if err != nil {
		return err
	}
	t.sent <- env
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	h := t.h
	t.mu.Unlock()
	if h.OnClose != nil {
		h.OnClose()
	}
	return nil
}

func (t *fakeTransport) deliver(env jsonrpc.Envelope) {
	t.mu.Lock()
	h := t.h
	t.mu.Unlock()
	h.OnMessage(env, MessageExtra{})
}

// next waits for the next outbound envelope.
func (t *fakeTransport) next(tb testing.TB) jsonrpc.Envelope {
	tb.Helper()
	select {
	case env := <-t.sent:
		return env
	case <-time.After(2 * time.Second):
		tb.Fatal("timed out waiting for an outbound message")
		return nil
	}
}

// nextRequest waits for the next outbound request, skipping anything else.
func (t *fakeTransport) nextRequest(tb testing.TB) *jsonrpc.Request {
	tb.Helper()
	for {
		if req, ok := t.next(tb).(*jsonrpc.Request); ok {
			return req
		}
	}
}

// drain returns every envelope sent so far without waiting.
func (t *fakeTransport) drain() []jsonrpc.Envelope {
	var out []jsonrpc.Envelope
	for {
		select {
		case env := <-t.sent:
			out = append(out, env)
		default:
			return out
		}
	}
}

// memTransport is one end of an in-memory connection. Messages are encoded
// and decoded on the way through so tests exercise the codec.
type memTransport struct {
	peer   *memTransport
	inbox  chan jsonrpc.Envelope
	done   chan struct{}
	closed atomic.Bool

	mu sync.Mutex
	h  Handlers

	// sent taps every envelope written by this end.
	sent chan jsonrpc.Envelope
}

func newMemPair() (*memTransport, *memTransport) {
	a := &memTransport{inbox: make(chan jsonrpc.Envelope, 1024), done: make(chan struct{}), sent: make(chan jsonrpc.Envelope, 1024)}
	b := &memTransport{inbox: make(chan jsonrpc.Envelope, 1024), done: make(chan struct{}), sent: make(chan jsonrpc.Envelope, 1024)}
	a.peer, b.peer = b, a
	return a, b
}

func (t *memTransport) Start(_ context.Context, h Handlers) error {
	t.mu.Lock()
	t.h = h
	t.mu.Unlock()
	go func() {
		for {
			select {
			case env := <-t.inbox:
				h.OnMessage(env, MessageExtra{})
			case <-t.done:
				return
			}
		}
	}()
	return nil
}

func (t *memTransport) Send(_ context.Context, env jsonrpc.Envelope, _ SendOptions) error {
	if t.closed.Load() {
		return io.ErrClosedPipe
	}
	b, err := jsonrpc.Encode(env)
	if err != nil {
		return err
	}
	decoded, err := jsonrpc.Decode(b)
	if err != nil {
		return err
	}
	select {
	case t.sent <- decoded:
	default:
	}
	select {
	case t.peer.inbox <- decoded:
		return nil
	case <-t.peer.done:
		return io.ErrClosedPipe
	}
}

func (t *memTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(t.done)
	t.mu.Lock()
	h := t.h
	t.mu.Unlock()
	if h.OnClose != nil {
		h.OnClose()
	}
	return t.peer.Close()
}

func sentOfKind[T jsonrpc.Envelope](ch chan jsonrpc.Envelope) []T {
	var out []T
	for {
		select {
		case env := <-ch:
			if v, ok := env.(T); ok {
				out = append(out, v)
			}
		default:
			return out
		}
	}
}

// connectPair returns a connected client and server Protocol. setup runs on
// the server before it connects.
func connectPair(t *testing.T, setup func(server *Protocol), clientOpts, serverOpts []Option) (client, server *Protocol, ct, st *memTransport) {
	t.Helper()
	ct, st = newMemPair()
	client = New(append([]Option{WithName("client")}, clientOpts...)...)
	server = New(append([]Option{WithName("server")}, serverOpts...)...)
	if setup != nil {
		setup(server)
	}
	start(t, server, st)
	start(t, client, ct)
	return client, server, ct, st
}

func start(t *testing.T, p *Protocol, tr Transport) {
	t.Helper()
	require.NoError(t, p.Connect(context.Background(), tr))
	t.Cleanup(func() { _ = p.Close() })
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
