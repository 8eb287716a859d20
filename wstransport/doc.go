// Package wstransport carries JSON-RPC envelopes over a WebSocket
// connection, one envelope per text frame.
//
// Servers upgrade incoming HTTP requests with Accept or mount Handler;
// clients connect with Dial. The headers of the HTTP request that opened the
// connection are attached to every inbound message as
// protocol.MessageExtra.Headers.
//
//	http.Handle("/mcp", wstransport.Handler(func(r *http.Request, t *wstransport.Transport) {
//	    srv := mcpserver.New(info)
//	    if err := srv.Connect(r.Context(), t); err != nil {
//	        return
//	    }
//	    <-srv.Done()
//	}))
package wstransport
