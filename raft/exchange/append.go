package exchange

import (
	"context"

	"github.com/ValentinKolb/raftex/raft/entry"
	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/wire"
)

// AppendEntriesExchange is the client side of log replication. The request
// is a packet sequence: one leading packet with the replication state, then
// one chunked payload stream per entry. The response is a single result.
type AppendEntriesExchange struct {
	req     wire.AppendRequest
	entries []entry.Entry

	headerSent bool
	idx        int
	streamer   entryStreamer

	fut future
}

// NewAppendEntriesExchange creates an append-entries exchange for the given
// batch. The entries are streamed in order; large contents are chunked.
func NewAppendEntriesExchange(term int64, entries []entry.Entry, prevLogIndex, prevLogTerm, commitIndex int64) *AppendEntriesExchange {
	return &AppendEntriesExchange{
		req: wire.AppendRequest{
			Term:         term,
			PrevLogIndex: prevLogIndex,
			PrevLogTerm:  prevLogTerm,
			CommitIndex:  commitIndex,
			EntryCount:   uint32(len(entries)),
		},
		entries: entries,
		fut:     newFuture(),
	}
}

// Await blocks until the exchange completes or ctx fires
func (x *AppendEntriesExchange) Await(ctx context.Context) (member.Result, error) {
	return x.fut.await(ctx)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see exchange.go)
// --------------------------------------------------------------------------

func (x *AppendEntriesExchange) CreateOutbound(buf []byte) (wire.Header, bool, error) {
	if !x.headerSent {
		n, err := wire.EncodeAppendRequest(buf, x.req)
		if err != nil {
			return wire.Header{}, false, err
		}
		x.headerSent = true

		flags := wire.FlagStreamStart
		last := len(x.entries) == 0
		if last {
			flags |= wire.FlagStreamEnd
		}
		return wire.Header{Type: wire.MsgTAppendEntries, Flags: flags, Length: uint32(n)}, last, nil
	}

	if !x.streamer.loaded {
		if err := x.streamer.load(x.entries[x.idx]); err != nil {
			return wire.Header{}, false, err
		}
	}

	flags, n, done, err := x.streamer.next(buf)
	if err != nil {
		return wire.Header{}, false, err
	}
	if done {
		x.idx++
		x.streamer.reset()
	}

	last := done && x.idx == len(x.entries)
	return wire.Header{Type: wire.MsgTContinue, Flags: flags, Length: uint32(n)}, last, nil
}

func (x *AppendEntriesExchange) ProcessInbound(h wire.Header, payload []byte) (Outcome, error) {
	return completeResult(&x.fut, h, payload)
}

func (x *AppendEntriesExchange) OnException(err error) {
	x.fut.fail(err)
}

func (x *AppendEntriesExchange) Reset() {
	x.headerSent = false
	x.idx = 0
	x.streamer.reset()
	x.fut = newFuture()
}
