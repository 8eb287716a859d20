// Package mcp contains the protocol-level data types and constants shared by
// the dispatcher, the client and server peers, and the transports. It mirrors
// the wire representation used by the Model Context Protocol while keeping the
// surface Go-friendly (exported structs with json tags, string constants for
// method names and enumerations).
//
// The package is free of transport and dispatch logic. Higher-level payloads
// (tool arguments, resource contents, prompt messages) are carried as opaque
// json.RawMessage values; only the shapes the protocol core itself inspects are
// modelled here.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. PingMethod). Capability rules in the client and server peers switch on
// these constants.
//
// # Capabilities
//
// ClientCapabilities and ServerCapabilities capture negotiated feature sets.
// They are exchanged during the initialize handshake. MergeClientCapabilities
// and MergeServerCapabilities combine two records without mutating either:
// a scalar in the second record replaces the same key in the first, while
// nested records are merged key by key.
//
// # Progress
//
// A request that wants progress updates carries a progress token under
// params._meta.progressToken. The peer echoes the token in
// notifications/progress so the sender can correlate updates:
//
//	meta := mcp.RequestMeta{ProgressToken: jsonrpc.NewRequestID(7)}
//
// # Compatibility
//
// LatestProtocolVersion is the most recent protocol revision the library
// targets. SupportedProtocolVersions lists every revision a peer accepts
// during negotiation.
package mcp
