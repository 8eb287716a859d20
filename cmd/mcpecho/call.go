package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ggoodman/mcp-protocol-go/brokertransport"
	"github.com/ggoodman/mcp-protocol-go/mcp"
	"github.com/ggoodman/mcp-protocol-go/mcpclient"
	"github.com/ggoodman/mcp-protocol-go/protocol"
	"github.com/ggoodman/mcp-protocol-go/wstransport"
	"github.com/spf13/cobra"
)

var clientInfo = mcp.ImplementationInfo{Name: "mcpecho", Version: version}

func (a *app) callCmd() *cobra.Command {
	var transport, url, session string
	var progress bool

	cmd := &cobra.Command{
		Use:   "call METHOD [PARAMS_JSON]",
		Short: "Connect to an echo peer and send one request",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("transport") {
				a.cfg.Transport = transport
			}
			if flags.Changed("url") {
				a.cfg.URL = url
			}
			if flags.Changed("session") {
				a.cfg.Session = session
			}

			var params json.RawMessage
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("params are not valid JSON: %s", args[1])
				}
				params = json.RawMessage(args[1])
			}
			return a.call(cmd.Context(), args[0], params, progress)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "transport: websocket or broker")
	cmd.Flags().StringVar(&url, "url", "", "websocket endpoint")
	cmd.Flags().StringVar(&session, "session", "", "broker session name")
	cmd.Flags().BoolVar(&progress, "progress", false, "request and print progress notifications")
	return cmd
}

func (a *app) dial(ctx context.Context) (protocol.Transport, func(), error) {
	switch a.cfg.Transport {
	case "websocket":
		t, err := wstransport.Dial(ctx, a.cfg.URL, wstransport.WithLogger(a.log))
		if err != nil {
			return nil, nil, err
		}
		return t, func() {}, nil
	case "broker":
		b, closeBroker, err := a.openBroker(ctx)
		if err != nil {
			return nil, nil, err
		}
		t, _ := brokertransport.Pair(b, a.cfg.Session, brokertransport.WithLogger(a.log))
		return t, closeBroker, nil
	default:
		return nil, nil, fmt.Errorf("call does not support transport %q", a.cfg.Transport)
	}
}

func (a *app) call(ctx context.Context, method string, params json.RawMessage, progress bool) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	t, release, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer release()

	cli := mcpclient.New(clientInfo, mcpclient.WithProtocolOptions(
		protocol.WithLogger(a.log),
		protocol.WithDefaultTimeout(a.cfg.RequestTimeout),
	))
	if err := cli.Connect(ctx, t); err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	a.log.Debug("mcpecho.call.connected",
		slog.String("server", cli.ServerInfo().Name),
		slog.String("protocol_version", cli.ProtocolVersion()))

	var opts []protocol.RequestOption
	if progress {
		opts = append(opts, protocol.WithProgress(func(p mcp.ProgressNotificationParams) {
			total := "?"
			if p.Total != nil {
				total = fmt.Sprint(*p.Total)
			}
			fmt.Fprintf(a.stderr, "progress %v/%s %s\n", p.Progress, total, p.Message)
		}))
	}

	raw, err := cli.Request(ctx, method, params, opts...)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	out.WriteByte('\n')
	_, err = a.stdout.Write(out.Bytes())
	return err
}
