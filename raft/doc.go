// Package raft provides the network transport layer for a raft cluster. It
// moves the raft RPCs - vote, heartbeat, append entries, install snapshot,
// metadata and resign - between cluster members over a compact binary
// protocol, without implementing the consensus algorithm itself: the
// algorithm plugs in behind the member.ILocalMember facade.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared across the
//     transport packages.
//
//   - wire: The binary packet format - the fixed-size header, the payload
//     codecs for every request and response kind, and the chunking flags.
//
//   - entry: The log entry abstraction streamed by the replication RPCs,
//     including the buffered in-memory implementation.
//
//   - member: The facade a local raft implementation exposes to receive
//     inbound RPCs, plus an in-memory member for demos and tests.
//
//   - exchange: The per-RPC state machines on both sides of the wire and
//     the pool of reusable server-side handlers.
//
//   - transport: The connection handling (base) with pluggable socket
//     implementations (tcp, unix).
//
//   - client: The typed client API used to invoke RPCs on a remote member.
package raft
