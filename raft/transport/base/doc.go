// Package base implements the medium-independent core of the raft transport
// layer. The actual socket handling is injected through the IClientConnector
// and IServerConnector interfaces, implemented by the tcp and unix packages.
//
// The client side owns one connection and one loop goroutine that executes
// queued exchanges strictly one at a time: the complete request packet
// sequence is written, then the complete response packet sequence is read.
// Failures and cancellations recycle the connection because a partially
// transferred message leaves the stream position unknown; the next exchange
// reconnects lazily.
//
// The server side accepts connections and serves one goroutine per
// connection. Handlers come from a fixed exchange pool shared across
// connections; when the pool is exhausted the request is answered with a
// busy rejection instead of queueing unbounded work.
package base
