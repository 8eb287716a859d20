// Package stdio implements a single-connection transport over a reader and a
// writer, by default the process's stdin and stdout. It is intended for
// running servers as subprocesses, local development, and environments where
// piping JSON is simpler than running a network listener.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 peer
//	Framing          : newline-delimited JSON, one envelope per line
//	Ordering         : writes are serialized; reads are delivered in order
//
// Options allow supplying an alternate io.Reader / io.Writer, a custom logger
// or a larger line limit.
//
// Example:
//
//	srv := mcpserver.New(mcp.ImplementationInfo{Name: "my-stdio-server", Version: "0.1.0"})
//	if err := srv.Connect(ctx, stdio.New()); err != nil {
//	    log.Fatal(err)
//	}
//	<-srv.Done()
package stdio
