package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/mcp-protocol-go/examples/echo"
	"github.com/ggoodman/mcp-protocol-go/mcp"
	"github.com/ggoodman/mcp-protocol-go/mcpclient"
	"github.com/ggoodman/mcp-protocol-go/protocol"
	"github.com/ggoodman/mcp-protocol-go/stdio"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, a *app, args ...string) error {
	t.Helper()
	root := a.rootCmd()
	root.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return root.ExecuteContext(ctx)
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	a := &app{stdin: strings.NewReader(""), stdout: &out, stderr: io.Discard}
	require.NoError(t, run(t, a, "version"))
	require.Equal(t, "mcpecho dev (none)\n", out.String())
}

func TestServeWebsocketAndCall(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &app{stdin: strings.NewReader(""), stdout: io.Discard, stderr: io.Discard}
	srv.cfg = DefaultConfig()
	log, _, err := newLogger(srv.cfg.Log, io.Discard)
	require.NoError(t, err)
	srv.log = log

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serveWebsocket(ctx, ln, nil) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	url := "ws://" + ln.Addr().String() + "/mcp"

	var out bytes.Buffer
	cli := &app{stdin: strings.NewReader(""), stdout: &out, stderr: io.Discard}
	require.NoError(t, run(t, cli, "call", "-t", "websocket", "--url", url, "sum", `{"a":2,"b":3}`))
	require.Equal(t, "5\n", out.String())

	out.Reset()
	var progress bytes.Buffer
	cli = &app{stdin: strings.NewReader(""), stdout: &out, stderr: &progress}
	require.NoError(t, run(t, cli, "call", "-t", "websocket", "--url", url, "--progress", "echo", `{"message":"hi","repeat":2}`))
	require.Equal(t, "{\n  \"message\": \"hi\"\n}\n", out.String())
	require.Contains(t, progress.String(), "progress 1/2 hi")
	require.Contains(t, progress.String(), "progress 2/2 hi")
}

func TestCall_Errors(t *testing.T) {
	a := &app{stdin: strings.NewReader(""), stdout: io.Discard, stderr: io.Discard}
	require.ErrorContains(t, run(t, a, "call", "sum", `{not json`), "not valid JSON")

	a = &app{stdin: strings.NewReader(""), stdout: io.Discard, stderr: io.Discard}
	require.ErrorContains(t, run(t, a, "call", "-t", "stdio", "sum"), `call does not support transport "stdio"`)

	a = &app{stdin: strings.NewReader(""), stdout: io.Discard, stderr: io.Discard}
	require.Error(t, run(t, a, "call"))
}

func TestServeStdio(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	a := &app{stdin: inR, stdout: outW, stderr: io.Discard}
	done := make(chan error, 1)
	go func() { done <- run(t, a, "serve", "-t", "stdio") }()

	cli := mcpclient.New(mcp.ImplementationInfo{Name: "test", Version: "0"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, cli.Connect(ctx, stdio.New(stdio.WithIO(outR, inW))))
	require.Equal(t, echo.Info, cli.ServerInfo())

	got, err := protocol.Call[int](ctx, cli.Protocol, echo.SumMethod, echo.SumParams{A: 4, B: 5})
	require.NoError(t, err)
	require.Equal(t, 9, got)

	// Closing the client ends the server's input.
	require.NoError(t, cli.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after EOF")
	}
}
