package exchange

import (
	"context"

	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/wire"
)

// ResignExchange asks the peer to step down as leader: an empty request
// packet answered with a result whose Value reports whether it resigned.
type ResignExchange struct {
	fut future
}

// NewResignExchange creates a resign exchange
func NewResignExchange() *ResignExchange {
	return &ResignExchange{fut: newFuture()}
}

// Await blocks until the exchange completes or ctx fires
func (x *ResignExchange) Await(ctx context.Context) (member.Result, error) {
	return x.fut.await(ctx)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see exchange.go)
// --------------------------------------------------------------------------

func (x *ResignExchange) CreateOutbound(_ []byte) (wire.Header, bool, error) {
	h := wire.Header{
		Type:  wire.MsgTResign,
		Flags: wire.FlagStreamStart | wire.FlagStreamEnd,
	}
	return h, true, nil
}

func (x *ResignExchange) ProcessInbound(h wire.Header, payload []byte) (Outcome, error) {
	return completeResult(&x.fut, h, payload)
}

func (x *ResignExchange) OnException(err error) {
	x.fut.fail(err)
}

func (x *ResignExchange) Reset() {
	x.fut = newFuture()
}
