package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/raftex/raft/entry"
	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/wire"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("raft/exchange")

// --------------------------------------------------------------------------
// Exchange interface
// --------------------------------------------------------------------------

// Outcome is the result of feeding a packet to an exchange
type Outcome uint8

const (
	// OutcomeContinue means the exchange expects more inbound packets
	OutcomeContinue Outcome = iota
	// OutcomeReply means the exchange has outbound packets to send
	OutcomeReply
	// OutcomeDone means the logical RPC is complete
	OutcomeDone
)

// IExchange is the capability set every exchange state machine implements.
// A client-side exchange produces request packets via CreateOutbound and
// consumes response packets via ProcessInbound; a server-side exchange does
// the reverse. Packets of one exchange are processed strictly in send order.
type IExchange interface {
	// ProcessInbound feeds one packet to the exchange. The payload slice is
	// only valid for the duration of the call.
	ProcessInbound(h wire.Header, payload []byte) (Outcome, error)

	// CreateOutbound writes the next outbound payload into buf and returns
	// its header and whether it is the last packet of the current direction.
	// The returned header's Length states the payload size within buf.
	CreateOutbound(buf []byte) (h wire.Header, last bool, err error)

	// OnException faults the exchange. On the client side the awaited
	// result resolves with err.
	OnException(err error)

	// Reset returns the exchange to a state indistinguishable from freshly
	// created so it can be reused.
	Reset()
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrServerBusy is observed by the caller when the peer's exchange pool
	// was exhausted and the request was rejected
	ErrServerBusy = errors.New("exchange: server busy, exchange pool exhausted")

	// ErrProtocolViolation is returned for packets that do not fit the
	// exchange's current state
	ErrProtocolViolation = errors.New("exchange: protocol violation")

	// ErrCanceled is observed by the caller when the exchange was faulted by
	// cancellation before completing
	ErrCanceled = errors.New("exchange: canceled")
)

// RemoteError reports that the peer's local processing failed. The exchange
// itself completed; the fault happened behind the peer's facade.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string {
	return "exchange: remote fault: " + e.Msg
}

// --------------------------------------------------------------------------
// Result future
// --------------------------------------------------------------------------

type futureResult struct {
	res member.Result
	err error
}

// future is a one-shot completion signal observed by the RPC caller.
// complete and fail are only ever invoked from the transport's send loop, so
// they need no locking; Await runs in the caller's goroutine and only reads.
type future struct {
	ch   chan futureResult
	done bool
}

func newFuture() future {
	return future{ch: make(chan futureResult, 1)}
}

func (f *future) complete(res member.Result) {
	if f.done {
		return
	}
	f.done = true
	f.ch <- futureResult{res: res}
}

func (f *future) fail(err error) {
	if f.done {
		return
	}
	f.done = true
	f.ch <- futureResult{err: err}
}

func (f *future) await(ctx context.Context) (member.Result, error) {
	select {
	case r := <-f.ch:
		return r.res, r.err
	case <-ctx.Done():
		return member.Result{}, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	}
}

// --------------------------------------------------------------------------
// Shared response handling
// --------------------------------------------------------------------------

// decodeResultResponse decodes the single response packet shared by the
// vote, heartbeat, append, snapshot and resign exchanges. Busy rejections
// and remote faults surface as errors distinguishable from decode failures
// via errors.Is / errors.As.
func decodeResultResponse(h wire.Header, payload []byte) (member.Result, error) {
	if h.Type == wire.MsgTAck {
		status, msg, err := wire.DecodeAck(payload)
		if err != nil {
			return member.Result{}, err
		}
		if status == wire.AckBusy {
			return member.Result{}, ErrServerBusy
		}
		return member.Result{}, &RemoteError{Msg: msg}
	}

	term, value, err := wire.DecodeResult(payload)
	if err != nil {
		return member.Result{}, err
	}
	return member.Result{Term: term, Value: value}, nil
}

// isRemoteStatus reports whether err is an answer from the peer rather than
// a local decode or I/O failure
func isRemoteStatus(err error) bool {
	var remote *RemoteError
	return errors.Is(err, ErrServerBusy) || errors.As(err, &remote)
}

// completeResult resolves fut from a response packet and reports whether the
// connection-level processing succeeded
func completeResult(fut *future, h wire.Header, payload []byte) (Outcome, error) {
	res, err := decodeResultResponse(h, payload)
	if err != nil {
		if isRemoteStatus(err) {
			fut.fail(err)
			return OutcomeDone, nil
		}
		return OutcomeDone, err
	}
	fut.complete(res)
	return OutcomeDone, nil
}

// --------------------------------------------------------------------------
// Entry streaming
// --------------------------------------------------------------------------

// entryStreamer chunks one entry (metadata prefix plus content) across
// outbound packets. The content is materialized once into a transient
// buffer; durable ownership of the entry stays with the caller.
type entryStreamer struct {
	content []byte
	off     int
	started bool
	meta    wire.EntryMeta
	loaded  bool
}

func (s *entryStreamer) load(e entry.Entry) error {
	var buf bytes.Buffer
	if length, known := e.Length(); known {
		buf.Grow(int(length))
	}
	if _, err := e.WriteTo(&buf); err != nil {
		return fmt.Errorf("exchange: failed to buffer entry content: %w", err)
	}

	s.content = buf.Bytes()
	s.off = 0
	s.started = false
	s.meta = wire.EntryMeta{
		Term:       e.Term(),
		Timestamp:  e.Timestamp().UnixNano(),
		IsSnapshot: e.IsSnapshot(),
		Length:     int64(len(s.content)),
	}
	s.loaded = true
	return nil
}

// next writes the next chunk of the loaded entry into buf. The first chunk
// carries the metadata prefix and FlagStreamStart; the chunk that exhausts
// the content carries FlagStreamEnd.
func (s *entryStreamer) next(buf []byte) (flags wire.Flags, n int, done bool, err error) {
	if !s.started {
		written, err := wire.EncodeEntryMeta(buf, s.meta)
		if err != nil {
			return 0, 0, false, err
		}
		n = written + copy(buf[written:], s.content[s.off:])
		s.off += n - written
		s.started = true
		flags = wire.FlagStreamStart
	} else {
		n = copy(buf, s.content[s.off:])
		s.off += n
	}

	if s.off == len(s.content) {
		flags |= wire.FlagStreamEnd
		done = true
	}
	return flags, n, done, nil
}

func (s *entryStreamer) reset() {
	*s = entryStreamer{}
}
