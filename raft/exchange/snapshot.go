package exchange

import (
	"context"

	"github.com/ValentinKolb/raftex/raft/entry"
	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/wire"
)

// InstallSnapshotExchange transfers a snapshot to a lagging follower. It
// follows the append-entries packet structure with exactly one chunked
// entry: a leading packet with term and snapshot index, then the snapshot
// content stream, answered with a single result.
type InstallSnapshotExchange struct {
	req      wire.SnapshotRequest
	snapshot entry.Entry

	headerSent bool
	streamer   entryStreamer

	fut future
}

// NewInstallSnapshotExchange creates an install-snapshot exchange
func NewInstallSnapshotExchange(term int64, snapshot entry.Entry, snapshotIndex int64) *InstallSnapshotExchange {
	return &InstallSnapshotExchange{
		req: wire.SnapshotRequest{
			Term:          term,
			SnapshotIndex: snapshotIndex,
		},
		snapshot: snapshot,
		fut:      newFuture(),
	}
}

// Await blocks until the exchange completes or ctx fires
func (x *InstallSnapshotExchange) Await(ctx context.Context) (member.Result, error) {
	return x.fut.await(ctx)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see exchange.go)
// --------------------------------------------------------------------------

func (x *InstallSnapshotExchange) CreateOutbound(buf []byte) (wire.Header, bool, error) {
	if !x.headerSent {
		n, err := wire.EncodeSnapshotRequest(buf, x.req)
		if err != nil {
			return wire.Header{}, false, err
		}
		x.headerSent = true
		return wire.Header{Type: wire.MsgTInstallSnapshot, Flags: wire.FlagStreamStart, Length: uint32(n)}, false, nil
	}

	if !x.streamer.loaded {
		if err := x.streamer.load(x.snapshot); err != nil {
			return wire.Header{}, false, err
		}
	}

	flags, n, done, err := x.streamer.next(buf)
	if err != nil {
		return wire.Header{}, false, err
	}
	return wire.Header{Type: wire.MsgTContinue, Flags: flags, Length: uint32(n)}, done, nil
}

func (x *InstallSnapshotExchange) ProcessInbound(h wire.Header, payload []byte) (Outcome, error) {
	return completeResult(&x.fut, h, payload)
}

func (x *InstallSnapshotExchange) OnException(err error) {
	x.fut.fail(err)
}

func (x *InstallSnapshotExchange) Reset() {
	x.headerSent = false
	x.streamer.reset()
	x.fut = newFuture()
}
