package exchange

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/raftex/raft/entry"
	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/wire"
)

// ServerExchange is the pooled server-side handler. Any free handler serves
// any request kind: the leading packet's type tag selects the behavior. It
// accumulates a transient buffered copy of streamed entries, invokes the
// local member facade once the request is complete, and encodes the
// response. A handler is bound to at most one connection at a time.
type ServerExchange struct {
	member member.ILocalMember
	slot   int

	// bound per logical RPC
	ctx    context.Context
	sender string

	kind wire.MessageType

	// request reception state
	appendReq wire.AppendRequest
	snapReq   wire.SnapshotRequest
	expected  uint32
	inEntry   bool
	curMeta   wire.EntryMeta
	curBuf    bytes.Buffer
	received  []entry.Entry

	// response state
	faultMsg string
	result   member.Result
	metaBlob []byte
	metaOff  int
}

// Bind attaches the connection context and peer address for the duration of
// one logical RPC. The transport calls this right after renting.
func (x *ServerExchange) Bind(ctx context.Context, sender string) {
	x.ctx = ctx
	x.sender = sender
}

// --------------------------------------------------------------------------
// Interface Methods (docu see exchange.go)
// --------------------------------------------------------------------------

func (x *ServerExchange) ProcessInbound(h wire.Header, payload []byte) (Outcome, error) {
	if x.kind == wire.MsgTUnknown {
		if !h.Type.IsExchangeKind() {
			return OutcomeDone, fmt.Errorf("%w: %s cannot open an exchange", ErrProtocolViolation, h.Type)
		}
		x.kind = h.Type
		return x.processLeading(payload)
	}

	if h.Type != wire.MsgTContinue {
		return OutcomeDone, fmt.Errorf("%w: expected continuation of %s, got %s", ErrProtocolViolation, x.kind, h.Type)
	}
	return x.processChunk(h, payload)
}

func (x *ServerExchange) CreateOutbound(buf []byte) (wire.Header, bool, error) {
	switch {
	case x.faultMsg != "":
		msg := x.faultMsg
		if len(msg) > len(buf)-1 {
			msg = msg[:len(buf)-1]
		}
		n, err := wire.EncodeAck(buf, wire.AckFault, msg)
		if err != nil {
			return wire.Header{}, false, err
		}
		h := wire.Header{Type: wire.MsgTAck, Flags: wire.FlagStreamStart | wire.FlagStreamEnd, Length: uint32(n)}
		return h, true, nil

	case x.kind == wire.MsgTMetadata:
		first := x.metaOff == 0
		n := copy(buf, x.metaBlob[x.metaOff:])
		x.metaOff += n

		var flags wire.Flags
		msgType := wire.MsgTContinue
		if first {
			flags |= wire.FlagStreamStart
			msgType = wire.MsgTMetadata
		}
		last := x.metaOff == len(x.metaBlob)
		if last {
			flags |= wire.FlagStreamEnd
		}
		return wire.Header{Type: msgType, Flags: flags, Length: uint32(n)}, last, nil

	default:
		n, err := wire.EncodeResult(buf, x.result.Term, x.result.Value)
		if err != nil {
			return wire.Header{}, false, err
		}
		h := wire.Header{Type: x.kind, Flags: wire.FlagStreamStart | wire.FlagStreamEnd, Length: uint32(n)}
		return h, true, nil
	}
}

func (x *ServerExchange) OnException(err error) {
	Logger.Debugf("server exchange (%s from %s) faulted: %v", x.kind, x.sender, err)
}

func (x *ServerExchange) Reset() {
	x.ctx = nil
	x.sender = ""
	x.kind = wire.MsgTUnknown
	x.appendReq = wire.AppendRequest{}
	x.snapReq = wire.SnapshotRequest{}
	x.expected = 0
	x.inEntry = false
	x.curMeta = wire.EntryMeta{}
	x.curBuf.Reset()
	x.received = nil
	x.faultMsg = ""
	x.result = member.Result{}
	x.metaBlob = nil
	x.metaOff = 0
}

// --------------------------------------------------------------------------
// Request processing
// --------------------------------------------------------------------------

// processLeading handles the packet that opened the exchange
func (x *ServerExchange) processLeading(payload []byte) (Outcome, error) {
	switch x.kind {
	case wire.MsgTVote:
		req, err := wire.DecodeVoteRequest(payload)
		if err != nil {
			return OutcomeDone, err
		}
		res, err := x.member.ReceiveVote(x.ctx, x.sender, req.Term, req.LastLogIndex, req.LastLogTerm)
		x.finish(res, err)
		return OutcomeReply, nil

	case wire.MsgTHeartbeat:
		req, err := wire.DecodeHeartbeatRequest(payload)
		if err != nil {
			return OutcomeDone, err
		}
		res, err := x.member.ReceiveEntries(x.ctx, x.sender, req.Term,
			entry.NewSliceProducer(nil), req.PrevLogIndex, req.PrevLogTerm, req.CommitIndex)
		x.finish(res, err)
		return OutcomeReply, nil

	case wire.MsgTResign:
		ok, err := x.member.Resign(x.ctx)
		x.finish(member.Result{Value: ok}, err)
		return OutcomeReply, nil

	case wire.MsgTMetadata:
		meta, err := x.member.Metadata(x.ctx)
		if err != nil {
			x.finish(member.Result{}, err)
		} else {
			x.metaBlob = wire.EncodeMetadata(meta)
			x.metaOff = 0
		}
		return OutcomeReply, nil

	case wire.MsgTAppendEntries:
		req, err := wire.DecodeAppendRequest(payload)
		if err != nil {
			return OutcomeDone, err
		}
		x.appendReq = req
		x.expected = req.EntryCount
		if x.expected == 0 {
			x.invokeMember()
			return OutcomeReply, nil
		}
		return OutcomeContinue, nil

	case wire.MsgTInstallSnapshot:
		req, err := wire.DecodeSnapshotRequest(payload)
		if err != nil {
			return OutcomeDone, err
		}
		x.snapReq = req
		x.expected = 1
		return OutcomeContinue, nil

	default:
		return OutcomeDone, fmt.Errorf("%w: unhandled exchange kind %s", ErrProtocolViolation, x.kind)
	}
}

// processChunk handles one chunk of a streamed entry
func (x *ServerExchange) processChunk(h wire.Header, payload []byte) (Outcome, error) {
	if !x.inEntry {
		if !h.Flags.Has(wire.FlagStreamStart) {
			return OutcomeDone, fmt.Errorf("%w: entry chunk without stream start", ErrProtocolViolation)
		}
		meta, err := wire.DecodeEntryMeta(payload)
		if err != nil {
			return OutcomeDone, err
		}
		x.curMeta = meta
		x.curBuf.Reset()
		x.curBuf.Write(payload[wire.EntryMetaSize:])
		x.inEntry = true
	} else {
		if h.Flags.Has(wire.FlagStreamStart) {
			return OutcomeDone, fmt.Errorf("%w: nested stream start within entry", ErrProtocolViolation)
		}
		x.curBuf.Write(payload)
	}

	if !h.Flags.Has(wire.FlagStreamEnd) {
		return OutcomeContinue, nil
	}

	if int64(x.curBuf.Len()) != x.curMeta.Length {
		return OutcomeDone, fmt.Errorf("%w: entry content is %d bytes, declared %d",
			ErrProtocolViolation, x.curBuf.Len(), x.curMeta.Length)
	}

	content := append([]byte(nil), x.curBuf.Bytes()...)
	x.received = append(x.received, entry.NewBufferedEntry(
		x.curMeta.Term,
		time.Unix(0, x.curMeta.Timestamp),
		x.curMeta.IsSnapshot,
		content,
	))
	x.inEntry = false
	x.expected--

	if x.expected > 0 {
		return OutcomeContinue, nil
	}

	x.invokeMember()
	return OutcomeReply, nil
}

// invokeMember hands the fully received request to the facade
func (x *ServerExchange) invokeMember() {
	switch x.kind {
	case wire.MsgTAppendEntries:
		res, err := x.member.ReceiveEntries(x.ctx, x.sender, x.appendReq.Term,
			entry.NewSliceProducer(x.received),
			x.appendReq.PrevLogIndex, x.appendReq.PrevLogTerm, x.appendReq.CommitIndex)
		x.finish(res, err)

	case wire.MsgTInstallSnapshot:
		res, err := x.member.ReceiveSnapshot(x.ctx, x.sender, x.snapReq.Term,
			x.received[0], x.snapReq.SnapshotIndex)
		x.finish(res, err)
	}
}

// finish records the facade outcome; an error turns the response into a
// fault ack so the caller never sees a silent failure
func (x *ServerExchange) finish(res member.Result, err error) {
	if err != nil {
		x.faultMsg = err.Error()
		return
	}
	x.result = res
}
