package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType identifies the exchange kind a packet belongs to. The leading
// packet of a logical RPC carries the kind; follow-on packets of the same
// RPC carry MsgTContinue.
type MessageType uint8

const (
	MsgTUnknown MessageType = iota

	// Exchange kinds

	MsgTVote            // request a vote for a candidate
	MsgTHeartbeat       // liveness probe (empty AppendEntries)
	MsgTAppendEntries   // replicate a batch of log entries
	MsgTInstallSnapshot // transfer a snapshot to a lagging follower
	MsgTMetadata        // query the peer's metadata map
	MsgTResign          // ask the leader to step down

	// Control packets

	MsgTContinue // follow-on packet of a multi-packet message
	MsgTAck      // status response (busy rejection, remote fault)
)

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTVote:
		return "vote"
	case MsgTHeartbeat:
		return "heartbeat"
	case MsgTAppendEntries:
		return "appendEntries"
	case MsgTInstallSnapshot:
		return "installSnapshot"
	case MsgTMetadata:
		return "metadata"
	case MsgTResign:
		return "resign"
	case MsgTContinue:
		return "continue"
	case MsgTAck:
		return "ack"
	default:
		return "unknown"
	}
}

// IsExchangeKind reports whether the type opens a new logical RPC
func (t MessageType) IsExchangeKind() bool {
	return t >= MsgTVote && t <= MsgTResign
}

// --------------------------------------------------------------------------
// Flags
// --------------------------------------------------------------------------

// Flags describe the position of a packet within a chunked payload stream.
// A self-contained payload carries both FlagStreamStart and FlagStreamEnd.
type Flags uint8

const (
	// FlagStreamStart marks the first chunk of a payload stream
	FlagStreamStart Flags = 1 << 0
	// FlagStreamEnd marks the last chunk of a payload stream
	FlagStreamEnd Flags = 1 << 1
)

// Has reports whether all bits of f2 are set in f
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// --------------------------------------------------------------------------
// Packet Header
// --------------------------------------------------------------------------

// HeaderSize is the encoded size of a packet header in bytes:
// 1 byte message type, 1 byte flags, 4 bytes payload length (big endian).
const HeaderSize = 6

// Header is the fixed-size packet header preceding every payload.
// Length states the exact number of payload bytes following the header.
type Header struct {
	Type   MessageType
	Flags  Flags
	Length uint32
}

var (
	// ErrHeaderTooShort is returned when a buffer cannot hold a header
	ErrHeaderTooShort = errors.New("wire: buffer too short for packet header")
	// ErrUnknownMessageType is returned for a type byte outside the known range
	ErrUnknownMessageType = errors.New("wire: unknown message type")
)

// EncodeHeader writes the header into dst. It never allocates; dst must
// provide at least HeaderSize bytes.
func EncodeHeader(dst []byte, h Header) error {
	if len(dst) < HeaderSize {
		return ErrHeaderTooShort
	}
	dst[0] = byte(h.Type)
	dst[1] = byte(h.Flags)
	binary.BigEndian.PutUint32(dst[2:6], h.Length)
	return nil
}

// DecodeHeader reads a header from src. Symmetric to EncodeHeader.
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, ErrHeaderTooShort
	}
	h := Header{
		Type:   MessageType(src[0]),
		Flags:  Flags(src[1]),
		Length: binary.BigEndian.Uint32(src[2:6]),
	}
	if h.Type == MsgTUnknown || h.Type > MsgTAck {
		return Header{}, fmt.Errorf("%w: %d", ErrUnknownMessageType, src[0])
	}
	return h, nil
}
