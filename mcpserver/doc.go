// Package mcpserver is the server side of an MCP connection.
//
// A Server wraps a protocol.Protocol, answers initialize by negotiating a
// protocol revision and advertising its capabilities, and offers helpers for
// the server-initiated traffic of MCP: log messages, list-changed
// notifications, roots/list and sampling/createMessage.
//
//	srv := mcpserver.New(mcp.ImplementationInfo{Name: "echo", Version: "1.0.0"},
//	    mcpserver.WithCapabilities(mcp.ServerCapabilities{Logging: &mcp.LoggingCapability{}}),
//	    mcpserver.WithInstructions("Call echo with any params."),
//	)
//	_ = srv.SetRequestHandler("echo", func(ctx context.Context, rc *protocol.RequestContext) (any, error) {
//	    return rc.Params, nil
//	})
//	if err := srv.Connect(ctx, stdio.New()); err != nil {
//	    return err
//	}
//	<-srv.Done()
//
// The tools, resources and prompts list-changed notifications are debounced
// by default so bursts of changes reach the client as one message.
package mcpserver
