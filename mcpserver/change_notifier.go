package mcpserver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-protocol-go/mcp"
	"github.com/ggoodman/mcp-protocol-go/protocol"
)

// ChangeNotifier is an in-process pub-sub for "this list changed" signals.
// Application code calls Notify whenever its tools, resources or prompts
// change; Server.NotifyOnChange turns the signals into list-changed
// notifications.
type ChangeNotifier struct {
	subscribersMu sync.RWMutex
	subscribers   []chan struct{}
	closed        bool
}

// ChangeSubscriber is anything that hands out change signal channels.
type ChangeSubscriber interface {
	Subscriber() <-chan struct{}
}

// Notify signals every subscriber. Slow subscribers that already hold a
// pending signal are skipped.
func (cn *ChangeNotifier) Notify() {
	cn.subscribersMu.RLock()
	defer cn.subscribersMu.RUnlock()

	if cn.closed {
		return
	}
	for _, ch := range cn.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close closes every subscriber channel. Later subscribers receive a closed
// channel.
func (cn *ChangeNotifier) Close() {
	cn.subscribersMu.Lock()
	if cn.closed {
		cn.subscribersMu.Unlock()
		return
	}
	cn.closed = true
	subs := cn.subscribers
	cn.subscribers = nil
	cn.subscribersMu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

// Subscriber returns a channel with capacity one that receives a signal after
// each Notify.
func (cn *ChangeNotifier) Subscriber() <-chan struct{} {
	cn.subscribersMu.Lock()
	defer cn.subscribersMu.Unlock()

	ch := make(chan struct{}, 1)
	if cn.closed {
		close(ch)
		return ch
	}
	cn.subscribers = append(cn.subscribers, ch)
	return ch
}

// NotifyOnChange starts forwarding every signal from sub to the client as the
// list-changed notification named by method. Forwarding runs in the
// background and stops when ctx ends or the subscription closes, or when the
// current connection closes. It fails with protocol.ErrNotConnected before
// Connect.
func (s *Server) NotifyOnChange(ctx context.Context, sub ChangeSubscriber, method mcp.Method) error {
	if !s.Connected() {
		return protocol.ErrNotConnected
	}
	done := s.Done()
	ch := sub.Subscriber()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if err := s.Notify(ctx, string(method), nil); err != nil {
					s.Logger().WarnContext(ctx, "server.list_changed.send_fail",
						slog.String("method", string(method)),
						slog.String("err", err.Error()),
					)
				}
			}
		}
	}()
	return nil
}
