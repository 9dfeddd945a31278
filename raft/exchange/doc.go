// Package exchange implements the state machines behind the raft transport
// protocol: one exchange per logical RPC (vote, heartbeat, append entries,
// install snapshot, metadata, resign).
//
// A client-side exchange is created with the request parameters, produces
// its request packets via CreateOutbound, consumes the correlated response
// packets via ProcessInbound and resolves a one-shot future observed through
// Await. The server side uses a single pooled handler type that serves every
// request kind, dispatching on the leading packet's type tag and calling
// into the local member facade once the request is fully received.
//
// Exchanges rely on the transport's ordering guarantee: packets of one
// logical RPC arrive in send order on a single connection, which makes the
// reconstruction of chunked multi-packet payloads deterministic. Correlation
// is implicit — at most one exchange is in flight per connection.
//
// The Pool holds the reusable server handlers. Rent and release are
// compare-and-swap operations over a free-slot bitmap; Release resets the
// handler so no cursor state leaks into the next rental.
package exchange
