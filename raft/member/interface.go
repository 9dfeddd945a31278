// Package member defines the local member facade the raft transport calls
// into when requests arrive. The facade owns all consensus-rule decisions
// (term comparisons, log consistency checks); the transport is policy-free
// and only relays.
package member

import (
	"context"

	"github.com/ValentinKolb/raftex/raft/entry"
)

// Result is the outcome of a facade operation: the responder's current term
// (so the caller can detect its own staleness) plus the operation outcome.
type Result struct {
	Term  int64
	Value bool
}

// ILocalMember is the interface for the raft node's own state machine,
// consulted by the server transport to apply received votes, entries and
// snapshots. All methods take a context because applying may block on
// durable storage.
type ILocalMember interface {
	// ReceiveVote handles a vote request from a candidate
	ReceiveVote(ctx context.Context, sender string, term, lastLogIndex, lastLogTerm int64) (Result, error)

	// ReceiveEntries handles replicated log entries. The producer yields the
	// received batch in order; the member may consume any prefix and still
	// return a result. Heartbeats arrive as an empty batch.
	ReceiveEntries(ctx context.Context, sender string, term int64, entries entry.Producer, prevLogIndex, prevLogTerm, commitIndex int64) (Result, error)

	// ReceiveSnapshot handles a snapshot transfer
	ReceiveSnapshot(ctx context.Context, sender string, term int64, snapshot entry.Entry, snapshotIndex int64) (Result, error)

	// Resign asks the member to step down if it is the leader
	Resign(ctx context.Context) (bool, error)

	// Metadata returns the member's metadata map
	Metadata(ctx context.Context) (map[string]string, error)
}
