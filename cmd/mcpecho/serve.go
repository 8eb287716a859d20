package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ggoodman/mcp-protocol-go/broker"
	redisbroker "github.com/ggoodman/mcp-protocol-go/broker/redis"
	"github.com/ggoodman/mcp-protocol-go/brokertransport"
	"github.com/ggoodman/mcp-protocol-go/examples/echo"
	"github.com/ggoodman/mcp-protocol-go/internal/logctx"
	"github.com/ggoodman/mcp-protocol-go/mcpserver"
	"github.com/ggoodman/mcp-protocol-go/protocol"
	"github.com/ggoodman/mcp-protocol-go/stdio"
	"github.com/ggoodman/mcp-protocol-go/wstransport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func (a *app) serveCmd() *cobra.Command {
	var transport, addr, path, session, metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the echo peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("transport") {
				a.cfg.Transport = transport
			}
			if flags.Changed("addr") {
				a.cfg.Addr = addr
			}
			if flags.Changed("path") {
				a.cfg.Path = path
			}
			if flags.Changed("session") {
				a.cfg.Session = session
			}
			if flags.Changed("metrics-addr") {
				a.cfg.MetricsAddr = metricsAddr
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "transport: stdio, websocket or broker")
	cmd.Flags().StringVar(&addr, "addr", "", "websocket listen address")
	cmd.Flags().StringVar(&path, "path", "", "websocket endpoint path")
	cmd.Flags().StringVar(&session, "session", "", "broker session name")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	if a.cfg.MetricsAddr != "" {
		stop, err := a.serveMetrics(reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	switch a.cfg.Transport {
	case "websocket":
		ln, err := net.Listen("tcp", a.cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
		}
		return a.serveWebsocket(ctx, ln, reg)
	case "broker":
		b, closeBroker, err := a.openBroker(ctx)
		if err != nil {
			return err
		}
		defer closeBroker()
		_, t := brokertransport.Pair(b, a.cfg.Session, brokertransport.WithLogger(a.log))
		return a.serveConn(ctx, t, reg)
	default:
		return a.serveConn(ctx, stdio.New(stdio.WithIO(a.stdin, a.stdout), stdio.WithLogger(a.log)), reg)
	}
}

func (a *app) newServer(reg prometheus.Registerer) (*mcpserver.Server, error) {
	return echo.NewServer(mcpserver.WithProtocolOptions(
		protocol.WithLogger(a.log),
		protocol.WithMetrics(reg),
		protocol.WithDefaultTimeout(a.cfg.RequestTimeout),
		protocol.WithMiddleware(protocol.Logging(a.log)),
	))
}

// serveConn runs one echo server on t until the connection or ctx ends.
func (a *app) serveConn(ctx context.Context, t protocol.Transport, reg prometheus.Registerer) error {
	srv, err := a.newServer(reg)
	if err != nil {
		return err
	}
	if err := srv.Connect(ctx, t); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	select {
	case <-ctx.Done():
		return srv.Close()
	case <-srv.Done():
		return nil
	}
}

// serveWebsocket accepts connections on ln until ctx ends. Each connection
// gets its own server.
func (a *app) serveWebsocket(ctx context.Context, ln net.Listener, reg prometheus.Registerer) error {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Path, wstransport.Handler(func(r *http.Request, t *wstransport.Transport) {
		connCtx := logctx.WithRequestData(ctx, &logctx.RequestData{
			UserAgent:  r.UserAgent(),
			RemoteAddr: r.RemoteAddr,
			Path:       r.URL.Path,
		})
		if err := a.serveConn(connCtx, t, reg); err != nil {
			a.log.Warn("mcpecho.conn.fail", slog.String("remote_addr", r.RemoteAddr), slog.String("err", err.Error()))
		}
	}, wstransport.WithLogger(a.log)))

	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()
	a.log.Info("mcpecho.listen", slog.String("addr", ln.Addr().String()), slog.String("path", a.cfg.Path))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", a.cfg.MetricsAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = hs.Serve(ln) }()
	a.log.Info("mcpecho.metrics.listen", slog.String("addr", ln.Addr().String()))
	return func() { _ = hs.Close() }, nil
}

// openBroker connects to the Redis broker configured through the
// environment.
func (a *app) openBroker(ctx context.Context) (broker.Broker, func(), error) {
	cfg, err := redisbroker.ConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	b := redisbroker.New(cfg)
	if err := b.Ping(ctx); err != nil {
		_ = b.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return b, func() { _ = b.Close() }, nil
}
