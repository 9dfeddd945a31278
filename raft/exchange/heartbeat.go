package exchange

import (
	"context"

	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/wire"
)

// HeartbeatExchange is the client side of a liveness probe: an empty
// AppendEntries carrying the leader's commit index, answered with a result.
type HeartbeatExchange struct {
	req wire.HeartbeatRequest
	fut future
}

// NewHeartbeatExchange creates a heartbeat exchange for the given leader state
func NewHeartbeatExchange(term, prevLogIndex, prevLogTerm, commitIndex int64) *HeartbeatExchange {
	return &HeartbeatExchange{
		req: wire.HeartbeatRequest{
			Term:         term,
			PrevLogIndex: prevLogIndex,
			PrevLogTerm:  prevLogTerm,
			CommitIndex:  commitIndex,
		},
		fut: newFuture(),
	}
}

// Await blocks until the exchange completes or ctx fires
func (x *HeartbeatExchange) Await(ctx context.Context) (member.Result, error) {
	return x.fut.await(ctx)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see exchange.go)
// --------------------------------------------------------------------------

func (x *HeartbeatExchange) CreateOutbound(buf []byte) (wire.Header, bool, error) {
	n, err := wire.EncodeHeartbeatRequest(buf, x.req)
	if err != nil {
		return wire.Header{}, false, err
	}
	h := wire.Header{
		Type:   wire.MsgTHeartbeat,
		Flags:  wire.FlagStreamStart | wire.FlagStreamEnd,
		Length: uint32(n),
	}
	return h, true, nil
}

func (x *HeartbeatExchange) ProcessInbound(h wire.Header, payload []byte) (Outcome, error) {
	return completeResult(&x.fut, h, payload)
}

func (x *HeartbeatExchange) OnException(err error) {
	x.fut.fail(err)
}

func (x *HeartbeatExchange) Reset() {
	x.fut = newFuture()
}
