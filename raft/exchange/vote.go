package exchange

import (
	"context"

	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/wire"
)

// VoteExchange is the client side of a vote RPC: one request packet with the
// candidate's term and last log position, one result response.
type VoteExchange struct {
	req wire.VoteRequest
	fut future
}

// NewVoteExchange creates a vote exchange for the given candidate state
func NewVoteExchange(term, lastLogIndex, lastLogTerm int64) *VoteExchange {
	return &VoteExchange{
		req: wire.VoteRequest{
			Term:         term,
			LastLogIndex: lastLogIndex,
			LastLogTerm:  lastLogTerm,
		},
		fut: newFuture(),
	}
}

// Await blocks until the exchange completes or ctx fires
func (x *VoteExchange) Await(ctx context.Context) (member.Result, error) {
	return x.fut.await(ctx)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see exchange.go)
// --------------------------------------------------------------------------

func (x *VoteExchange) CreateOutbound(buf []byte) (wire.Header, bool, error) {
	n, err := wire.EncodeVoteRequest(buf, x.req)
	if err != nil {
		return wire.Header{}, false, err
	}
	h := wire.Header{
		Type:   wire.MsgTVote,
		Flags:  wire.FlagStreamStart | wire.FlagStreamEnd,
		Length: uint32(n),
	}
	return h, true, nil
}

func (x *VoteExchange) ProcessInbound(h wire.Header, payload []byte) (Outcome, error) {
	return completeResult(&x.fut, h, payload)
}

func (x *VoteExchange) OnException(err error) {
	x.fut.fail(err)
}

func (x *VoteExchange) Reset() {
	x.fut = newFuture()
}
