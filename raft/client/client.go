package client

import (
	"context"

	"github.com/ValentinKolb/raftex/raft/common"
	"github.com/ValentinKolb/raftex/raft/entry"
	"github.com/ValentinKolb/raftex/raft/exchange"
	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/transport"
)

// RaftClient is the typed RPC surface towards one remote cluster member.
// Each method creates the matching exchange, submits it to the transport and
// awaits the peer's answer. Calls may run concurrently; the transport
// serializes them onto the connection in enqueue order.
type RaftClient struct {
	transport transport.IClientTransport
}

// NewRaftClient creates a client for one remote member. The function takes a
// util and a transport as parameters, connects the transport and returns the
// client and an error.
func NewRaftClient(config common.ClientConfig, t transport.IClientTransport) (*RaftClient, error) {
	if err := t.Connect(config); err != nil {
		return nil, err
	}
	return &RaftClient{transport: t}, nil
}

// Vote asks the remote member to vote for a candidate at the given term
func (c *RaftClient) Vote(ctx context.Context, term, lastLogIndex, lastLogTerm int64) (member.Result, error) {
	x := exchange.NewVoteExchange(term, lastLogIndex, lastLogTerm)
	if err := c.transport.Enqueue(ctx, x); err != nil {
		return member.Result{}, err
	}
	return x.Await(ctx)
}

// Heartbeat probes the remote member with an empty entry batch
func (c *RaftClient) Heartbeat(ctx context.Context, term, prevLogIndex, prevLogTerm, commitIndex int64) (member.Result, error) {
	x := exchange.NewHeartbeatExchange(term, prevLogIndex, prevLogTerm, commitIndex)
	if err := c.transport.Enqueue(ctx, x); err != nil {
		return member.Result{}, err
	}
	return x.Await(ctx)
}

// AppendEntries replicates a batch of log entries to the remote member
func (c *RaftClient) AppendEntries(ctx context.Context, term int64, entries []entry.Entry, prevLogIndex, prevLogTerm, commitIndex int64) (member.Result, error) {
	x := exchange.NewAppendEntriesExchange(term, entries, prevLogIndex, prevLogTerm, commitIndex)
	if err := c.transport.Enqueue(ctx, x); err != nil {
		return member.Result{}, err
	}
	return x.Await(ctx)
}

// InstallSnapshot transfers a snapshot to the remote member
func (c *RaftClient) InstallSnapshot(ctx context.Context, term int64, snapshot entry.Entry, snapshotIndex int64) (member.Result, error) {
	x := exchange.NewInstallSnapshotExchange(term, snapshot, snapshotIndex)
	if err := c.transport.Enqueue(ctx, x); err != nil {
		return member.Result{}, err
	}
	return x.Await(ctx)
}

// Metadata queries the remote member's metadata map
func (c *RaftClient) Metadata(ctx context.Context) (map[string]string, error) {
	x := exchange.NewMetadataExchange()
	if err := c.transport.Enqueue(ctx, x); err != nil {
		return nil, err
	}
	return x.Await(ctx)
}

// Resign asks the remote member to step down from leadership
func (c *RaftClient) Resign(ctx context.Context) (bool, error) {
	x := exchange.NewResignExchange()
	if err := c.transport.Enqueue(ctx, x); err != nil {
		return false, err
	}
	res, err := x.Await(ctx)
	if err != nil {
		return false, err
	}
	return res.Value, nil
}

// Close shuts the underlying transport down
func (c *RaftClient) Close() error {
	return c.transport.Close()
}
