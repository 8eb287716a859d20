// Package mcpclient is the client side of an MCP connection.
//
// A Client wraps a protocol.Protocol and performs the initialize handshake
// when it connects: it advertises its capabilities and implementation info,
// checks that the server speaks a supported protocol revision, records what
// the server offers, and confirms with notifications/initialized.
//
//	c := mcpclient.New(mcp.ImplementationInfo{Name: "demo", Version: "1.0.0"},
//	    mcpclient.WithCapabilities(mcp.ClientCapabilities{Roots: &mcp.RootsCapability{ListChanged: true}}),
//	)
//	if err := c.Connect(ctx, transport); err != nil {
//	    return err
//	}
//	defer c.Close()
//	fmt.Println(c.ServerInfo().Name)
//
// Once connected, every outbound request is checked against the server's
// capabilities when strict enforcement is enabled with
// protocol.WithEnforceStrictCapabilities.
package mcpclient
