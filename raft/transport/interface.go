package transport

import (
	"context"

	"github.com/ValentinKolb/raftex/raft/common"
	"github.com/ValentinKolb/raftex/raft/exchange"
	"github.com/ValentinKolb/raftex/raft/member"
)

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientTransport drives client exchanges over a single connection to one
// peer. Exchanges run strictly one at a time in enqueue order, which is what
// makes packet correlation implicit; applications that need concurrent
// in-flight RPCs to the same peer open multiple client transports.
type IClientTransport interface {
	// Connect initializes the transport with the given configuration and
	// establishes the connection
	Connect(config common.ClientConfig) error

	// Enqueue submits an exchange for execution. It blocks while the queue
	// is full and returns once the exchange is accepted; completion is
	// observed through the exchange itself. When ctx fires before the
	// exchange completes, the exchange is faulted with a cancellation error.
	Enqueue(ctx context.Context, x exchange.IExchange) error

	// Close shuts the transport down and faults all queued exchanges
	Close() error
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerTransport accepts connections and serves inbound exchanges against
// a local member facade.
type IServerTransport interface {
	// Serve listens per the given configuration and blocks serving requests
	// against m until Close is called
	Serve(config common.ServerConfig, m member.ILocalMember) error

	// Close stops the listener and waits for open connections to drain
	Close() error
}
