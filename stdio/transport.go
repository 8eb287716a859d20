package stdio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
	"github.com/ggoodman/mcp-protocol-go/protocol"
)

var (
	// ErrClosed is returned by Send after the transport closed.
	ErrClosed = errors.New("stdio: transport closed")
	// ErrStarted is returned by a second call to Start.
	ErrStarted = errors.New("stdio: transport already started")
)

// Transport carries newline-delimited JSON-RPC envelopes over a reader and a
// writer.
type Transport struct {
	r       io.Reader
	w       io.Writer
	l       *slog.Logger
	maxSize int

	// writeMu serializes writes so that lines never interleave.
	writeMu sync.Mutex

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	hmu sync.Mutex
	h   protocol.Handlers
}

var _ protocol.Transport = (*Transport)(nil)

// New constructs a Transport over stdin and stdout unless overridden by
// options.
func New(opts ...Option) *Transport {
	t := &Transport{
		r:       os.Stdin,
		w:       os.Stdout,
		l:       slog.Default(),
		maxSize: DefaultMaxMessageSize,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start launches the read loop. The transport closes when the reader reaches
// EOF or ctx ends.
func (t *Transport) Start(ctx context.Context, h protocol.Handlers) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	t.hmu.Lock()
	t.h = h
	t.hmu.Unlock()

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

	sc := bufio.NewScanner(t.r)
	sc.Buffer(make([]byte, 0, min(64<<10, t.maxSize)), t.maxSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		env, err := jsonrpc.Decode(line)
		if err != nil {
			t.l.Debug("stdio.read.decode_fail", slog.String("err", err.Error()))
			if h.OnError != nil {
				h.OnError(err)
			}
			continue
		}
		h.OnMessage(env, protocol.MessageExtra{})
	}

	if err := sc.Err(); err != nil && !t.closed.Load() {
		t.l.Warn("stdio.read.fail", slog.String("err", err.Error()))
		if h.OnError != nil {
			h.OnError(fmt.Errorf("stdio read: %w", err))
		}
	}
}

// Send writes env as one line.
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
	if _, err := t.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("stdio write: %w", err)
	}
	return nil
}

// Close stops the transport. The reader and writer are closed when they are
// closable and are not the process's standard streams. Close is idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)

		if c, ok := t.r.(io.Closer); ok && t.r != io.Reader(os.Stdin) {
			err = errors.Join(err, c.Close())
		}
		if c, ok := t.w.(io.Closer); ok && t.w != io.Writer(os.Stdout) {
			err = errors.Join(err, c.Close())
		}

		t.hmu.Lock()
		h := t.h
		t.hmu.Unlock()
		if h.OnClose != nil {
			h.OnClose()
		}
	})
	return err
}
