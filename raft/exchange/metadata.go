package exchange

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ValentinKolb/raftex/raft/wire"
)

type metadataResult struct {
	meta map[string]string
	err  error
}

// MetadataExchange queries the peer's metadata map: an empty request packet,
// answered with the encoded map chunked across as many packets as needed.
type MetadataExchange struct {
	blob bytes.Buffer
	ch   chan metadataResult
	done bool
}

// NewMetadataExchange creates a metadata exchange
func NewMetadataExchange() *MetadataExchange {
	return &MetadataExchange{ch: make(chan metadataResult, 1)}
}

// Await blocks until the metadata map arrives or ctx fires
func (x *MetadataExchange) Await(ctx context.Context) (map[string]string, error) {
	select {
	case r := <-x.ch:
		return r.meta, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	}
}

func (x *MetadataExchange) complete(meta map[string]string) {
	if x.done {
		return
	}
	x.done = true
	x.ch <- metadataResult{meta: meta}
}

func (x *MetadataExchange) fail(err error) {
	if x.done {
		return
	}
	x.done = true
	x.ch <- metadataResult{err: err}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see exchange.go)
// --------------------------------------------------------------------------

func (x *MetadataExchange) CreateOutbound(_ []byte) (wire.Header, bool, error) {
	h := wire.Header{
		Type:  wire.MsgTMetadata,
		Flags: wire.FlagStreamStart | wire.FlagStreamEnd,
	}
	return h, true, nil
}

func (x *MetadataExchange) ProcessInbound(h wire.Header, payload []byte) (Outcome, error) {
	switch h.Type {
	case wire.MsgTAck:
		status, msg, err := wire.DecodeAck(payload)
		if err != nil {
			return OutcomeDone, err
		}
		if status == wire.AckBusy {
			x.fail(ErrServerBusy)
		} else {
			x.fail(&RemoteError{Msg: msg})
		}
		return OutcomeDone, nil

	case wire.MsgTMetadata, wire.MsgTContinue:
		x.blob.Write(payload)
		if !h.Flags.Has(wire.FlagStreamEnd) {
			return OutcomeContinue, nil
		}

		meta, err := wire.DecodeMetadata(x.blob.Bytes())
		if err != nil {
			return OutcomeDone, err
		}
		x.complete(meta)
		return OutcomeDone, nil

	default:
		return OutcomeDone, fmt.Errorf("%w: unexpected %s response to metadata request", ErrProtocolViolation, h.Type)
	}
}

func (x *MetadataExchange) OnException(err error) {
	x.fail(err)
}

func (x *MetadataExchange) Reset() {
	x.blob.Reset()
	x.ch = make(chan metadataResult, 1)
	x.done = false
}
