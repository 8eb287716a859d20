package brokertransport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/mcp-protocol-go/broker"
	"github.com/ggoodman/mcp-protocol-go/broker/memory"
	"github.com/ggoodman/mcp-protocol-go/jsonrpc"
	"github.com/ggoodman/mcp-protocol-go/protocol"
	"github.com/stretchr/testify/require"
)

func TestPair_PeerToPeer(t *testing.T) {
	b := memory.New()
	clientT, serverT := Pair(b, "session-1")

	sessions := make(chan string, 1)
	server := protocol.New(protocol.WithName("server"))
	require.NoError(t, server.SetRequestHandler("sum", func(_ context.Context, rc *protocol.RequestContext) (any, error) {
		sessions <- rc.Extra.SessionID
		var args struct{ A, B int }
		if err := json.Unmarshal(rc.Params, &args); err != nil {
			return nil, err
		}
		return args.A + args.B, nil
	}))
	client := protocol.New(protocol.WithName("client"))

	// The client connects first: its request must survive the server
	// subscribing later.
	require.NoError(t, client.Connect(context.Background(), clientT))
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result := make(chan int, 1)
	errs := make(chan error, 1)
	go func() {
		got, err := protocol.Call[int](ctx, client, "sum", map[string]int{"a": 2, "b": 3})
		if err != nil {
			errs <- err
			return
		}
		result <- got
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, server.Connect(context.Background(), serverT))

	select {
	case got := <-result:
		require.Equal(t, 5, got)
	case err := <-errs:
		t.Fatalf("call: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for response")
	}
	require.Equal(t, "session-1", <-sessions)
}

func TestPair_Namespaces(t *testing.T) {
	clientT, serverT := Pair(memory.New(), "s")
	require.Equal(t, clientT.Outbox(), serverT.Inbox())
	require.Equal(t, serverT.Outbox(), clientT.Inbox())
	require.NotEqual(t, clientT.Inbox(), serverT.Inbox())
}

func TestTransport_MalformedMessageReported(t *testing.T) {
	b := memory.New()
	tr := New(b, "in", "out")

	errs := make(chan error, 1)
	msgs := make(chan jsonrpc.Envelope, 1)
	require.NoError(t, tr.Start(context.Background(), protocol.Handlers{
		OnMessage: func(env jsonrpc.Envelope, _ protocol.MessageExtra) { msgs <- env },
		OnError:   func(err error) { errs <- err },
	}))
	t.Cleanup(func() { _ = tr.Close() })

	ctx := context.Background()
	_, err := b.Publish(ctx, "in", jsonrpc.Message(`{not json`))
	require.NoError(t, err)
	_, err = b.Publish(ctx, "in", jsonrpc.Message(`{"jsonrpc":"2.0","method":"ping","id":1}`))
	require.NoError(t, err)

	select {
	case err := <-errs:
		var de *jsonrpc.DecodeError
		require.ErrorAs(t, err, &de)
	case <-time.After(time.Second):
		t.Fatal("decode error not reported")
	}
	select {
	case env := <-msgs:
		req, ok := env.(*jsonrpc.Request)
		require.True(t, ok)
		require.Equal(t, "ping", req.Method)
	case <-time.After(time.Second):
		t.Fatal("message after malformed input not delivered")
	}
}

func TestTransport_SendPublishesToOutbox(t *testing.T) {
	b := memory.New()
	tr := New(b, "in", "out")
	require.NoError(t, tr.Start(context.Background(), protocol.Handlers{
		OnMessage: func(jsonrpc.Envelope, protocol.MessageExtra) {},
	}))
	t.Cleanup(func() { _ = tr.Close() })

	n, err := jsonrpc.NewNotification("notifications/test", map[string]int{"n": 1})
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), n, protocol.SendOptions{}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stop := errors.New("stop")
	err = b.Subscribe(ctx, "out", broker.FromBeginning, func(_ context.Context, env broker.MessageEnvelope) error {
		decoded, err := jsonrpc.Decode(env.Data)
		require.NoError(t, err)
		require.Equal(t, "notifications/test", decoded.(*jsonrpc.Notification).Method)
		return stop
	})
	require.ErrorIs(t, err, stop)
}

func TestTransport_Close(t *testing.T) {
	b := memory.New()
	tr := New(b, "in", "out")

	closed := make(chan struct{}, 2)
	require.NoError(t, tr.Start(context.Background(), protocol.Handlers{
		OnMessage: func(jsonrpc.Envelope, protocol.MessageExtra) {},
		OnClose:   func() { closed <- struct{}{} },
	}))
	_, err := b.Publish(context.Background(), "in", jsonrpc.Message(`{"jsonrpc":"2.0","method":"x"}`))
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	require.Len(t, closed, 1)

	n, err := jsonrpc.NewNotification("x", nil)
	require.NoError(t, err)
	require.ErrorIs(t, tr.Send(context.Background(), n, protocol.SendOptions{}), ErrClosed)

	// The inbox was cleaned up, so a fresh reader sees nothing.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = b.Subscribe(ctx, "in", broker.FromBeginning, func(context.Context, broker.MessageEnvelope) error {
		return errors.New("unexpected message")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_StartTwice(t *testing.T) {
	tr := New(memory.New(), "in", "out")
	h := protocol.Handlers{OnMessage: func(jsonrpc.Envelope, protocol.MessageExtra) {}}
	require.NoError(t, tr.Start(context.Background(), h))
	t.Cleanup(func() { _ = tr.Close() })
	require.ErrorIs(t, tr.Start(context.Background(), h), ErrStarted)
}

func TestTransport_ContextEndsSubscription(t *testing.T) {
	tr := New(memory.New(), "in", "out")
	ctx, cancel := context.WithCancel(context.Background())

	closed := make(chan struct{})
	require.NoError(t, tr.Start(ctx, protocol.Handlers{
		OnMessage: func(jsonrpc.Envelope, protocol.MessageExtra) {},
		OnClose:   func() { close(closed) },
	}))
	cancel()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("transport did not close after context cancellation")
	}
}
