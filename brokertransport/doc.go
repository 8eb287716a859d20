// Package brokertransport runs a protocol connection over a broker.Broker.
//
// Each Transport reads its inbox namespace and publishes to its outbox
// namespace, so the two peers only need to share the bus. With the Redis
// broker they may live in different processes:
//
//	b := memory.New()
//	clientT, serverT := brokertransport.Pair(b, "session-1")
//	_ = server.Connect(ctx, serverT)
//	_ = client.Connect(ctx, clientT)
//
// The inbox is read from its first retained message, so envelopes published
// before Start are delivered. Close removes the inbox namespace.
package brokertransport
