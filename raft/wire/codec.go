package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Payload layouts for every exchange kind. All integers are big endian and
// fixed width; signed values are encoded as their two's-complement uint64.
// Encoders write into caller-supplied buffers and fail with
// ErrBufferTooSmall instead of growing them.

var (
	// ErrBufferTooSmall is returned when a payload does not fit the buffer
	ErrBufferTooSmall = errors.New("wire: buffer too small for payload")
	// ErrPayloadTruncated is returned when a payload is shorter than its layout
	ErrPayloadTruncated = errors.New("wire: payload truncated")
)

func putInt64(dst []byte, v int64) {
	binary.BigEndian.PutUint64(dst, uint64(v))
}

func getInt64(src []byte) int64 {
	return int64(binary.BigEndian.Uint64(src))
}

func putBool(dst []byte, v bool) {
	if v {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
}

// --------------------------------------------------------------------------
// Vote
// --------------------------------------------------------------------------

// VoteRequestSize is the encoded size of a vote request payload
const VoteRequestSize = 24

// VoteRequest is the payload of a vote request packet
type VoteRequest struct {
	Term         int64
	LastLogIndex int64
	LastLogTerm  int64
}

// EncodeVoteRequest writes the request into dst and returns the written length
func EncodeVoteRequest(dst []byte, r VoteRequest) (int, error) {
	if len(dst) < VoteRequestSize {
		return 0, ErrBufferTooSmall
	}
	putInt64(dst[0:8], r.Term)
	putInt64(dst[8:16], r.LastLogIndex)
	putInt64(dst[16:24], r.LastLogTerm)
	return VoteRequestSize, nil
}

// DecodeVoteRequest reads a vote request from src
func DecodeVoteRequest(src []byte) (VoteRequest, error) {
	if len(src) < VoteRequestSize {
		return VoteRequest{}, ErrPayloadTruncated
	}
	return VoteRequest{
		Term:         getInt64(src[0:8]),
		LastLogIndex: getInt64(src[8:16]),
		LastLogTerm:  getInt64(src[16:24]),
	}, nil
}

// --------------------------------------------------------------------------
// Heartbeat
// --------------------------------------------------------------------------

// HeartbeatRequestSize is the encoded size of a heartbeat request payload
const HeartbeatRequestSize = 32

// HeartbeatRequest is the payload of a heartbeat request packet. It carries
// the commit index so that liveness probes also advance the follower commit.
type HeartbeatRequest struct {
	Term         int64
	PrevLogIndex int64
	PrevLogTerm  int64
	CommitIndex  int64
}

// EncodeHeartbeatRequest writes the request into dst and returns the written length
func EncodeHeartbeatRequest(dst []byte, r HeartbeatRequest) (int, error) {
	if len(dst) < HeartbeatRequestSize {
		return 0, ErrBufferTooSmall
	}
	putInt64(dst[0:8], r.Term)
	putInt64(dst[8:16], r.PrevLogIndex)
	putInt64(dst[16:24], r.PrevLogTerm)
	putInt64(dst[24:32], r.CommitIndex)
	return HeartbeatRequestSize, nil
}

// DecodeHeartbeatRequest reads a heartbeat request from src
func DecodeHeartbeatRequest(src []byte) (HeartbeatRequest, error) {
	if len(src) < HeartbeatRequestSize {
		return HeartbeatRequest{}, ErrPayloadTruncated
	}
	return HeartbeatRequest{
		Term:         getInt64(src[0:8]),
		PrevLogIndex: getInt64(src[8:16]),
		PrevLogTerm:  getInt64(src[16:24]),
		CommitIndex:  getInt64(src[24:32]),
	}, nil
}

// --------------------------------------------------------------------------
// AppendEntries
// --------------------------------------------------------------------------

// AppendRequestSize is the encoded size of an append-entries leading payload
const AppendRequestSize = 36

// AppendRequest is the payload of the leading packet of an append-entries
// message. EntryCount entries follow, one chunked payload stream per entry.
type AppendRequest struct {
	Term         int64
	PrevLogIndex int64
	PrevLogTerm  int64
	CommitIndex  int64
	EntryCount   uint32
}

// EncodeAppendRequest writes the request into dst and returns the written length
func EncodeAppendRequest(dst []byte, r AppendRequest) (int, error) {
	if len(dst) < AppendRequestSize {
		return 0, ErrBufferTooSmall
	}
	putInt64(dst[0:8], r.Term)
	putInt64(dst[8:16], r.PrevLogIndex)
	putInt64(dst[16:24], r.PrevLogTerm)
	putInt64(dst[24:32], r.CommitIndex)
	binary.BigEndian.PutUint32(dst[32:36], r.EntryCount)
	return AppendRequestSize, nil
}

// DecodeAppendRequest reads an append-entries leading payload from src
func DecodeAppendRequest(src []byte) (AppendRequest, error) {
	if len(src) < AppendRequestSize {
		return AppendRequest{}, ErrPayloadTruncated
	}
	return AppendRequest{
		Term:         getInt64(src[0:8]),
		PrevLogIndex: getInt64(src[8:16]),
		PrevLogTerm:  getInt64(src[16:24]),
		CommitIndex:  getInt64(src[24:32]),
		EntryCount:   binary.BigEndian.Uint32(src[32:36]),
	}, nil
}

// --------------------------------------------------------------------------
// InstallSnapshot
// --------------------------------------------------------------------------

// SnapshotRequestSize is the encoded size of a snapshot leading payload
const SnapshotRequestSize = 16

// SnapshotRequest is the payload of the leading packet of an
// install-snapshot message. Exactly one chunked entry follows.
type SnapshotRequest struct {
	Term          int64
	SnapshotIndex int64
}

// EncodeSnapshotRequest writes the request into dst and returns the written length
func EncodeSnapshotRequest(dst []byte, r SnapshotRequest) (int, error) {
	if len(dst) < SnapshotRequestSize {
		return 0, ErrBufferTooSmall
	}
	putInt64(dst[0:8], r.Term)
	putInt64(dst[8:16], r.SnapshotIndex)
	return SnapshotRequestSize, nil
}

// DecodeSnapshotRequest reads a snapshot leading payload from src
func DecodeSnapshotRequest(src []byte) (SnapshotRequest, error) {
	if len(src) < SnapshotRequestSize {
		return SnapshotRequest{}, ErrPayloadTruncated
	}
	return SnapshotRequest{
		Term:          getInt64(src[0:8]),
		SnapshotIndex: getInt64(src[8:16]),
	}, nil
}

// --------------------------------------------------------------------------
// Entry metadata prefix
// --------------------------------------------------------------------------

// EntryMetaSize is the encoded size of an entry metadata prefix
const EntryMetaSize = 25

const entryMetaFlagSnapshot byte = 1 << 0

// EntryMeta is the metadata prefix preceding the content bytes of a log
// entry on the wire. Timestamp is UnixNano, Length the exact content size.
type EntryMeta struct {
	Term       int64
	Timestamp  int64
	IsSnapshot bool
	Length     int64
}

// EncodeEntryMeta writes the metadata prefix into dst and returns the written length
func EncodeEntryMeta(dst []byte, m EntryMeta) (int, error) {
	if len(dst) < EntryMetaSize {
		return 0, ErrBufferTooSmall
	}
	putInt64(dst[0:8], m.Term)
	putInt64(dst[8:16], m.Timestamp)
	dst[16] = 0
	if m.IsSnapshot {
		dst[16] = entryMetaFlagSnapshot
	}
	putInt64(dst[17:25], m.Length)
	return EntryMetaSize, nil
}

// DecodeEntryMeta reads an entry metadata prefix from src
func DecodeEntryMeta(src []byte) (EntryMeta, error) {
	if len(src) < EntryMetaSize {
		return EntryMeta{}, ErrPayloadTruncated
	}
	return EntryMeta{
		Term:       getInt64(src[0:8]),
		Timestamp:  getInt64(src[8:16]),
		IsSnapshot: src[16]&entryMetaFlagSnapshot != 0,
		Length:     getInt64(src[17:25]),
	}, nil
}

// --------------------------------------------------------------------------
// Result
// --------------------------------------------------------------------------

// ResultSize is the encoded size of a result payload
const ResultSize = 9

// EncodeResult writes the shared response payload (responder term plus
// outcome) used by vote, heartbeat, append, snapshot and resign exchanges.
func EncodeResult(dst []byte, term int64, value bool) (int, error) {
	if len(dst) < ResultSize {
		return 0, ErrBufferTooSmall
	}
	putInt64(dst[0:8], term)
	putBool(dst[8:9], value)
	return ResultSize, nil
}

// DecodeResult reads a result payload from src
func DecodeResult(src []byte) (term int64, value bool, err error) {
	if len(src) < ResultSize {
		return 0, false, ErrPayloadTruncated
	}
	return getInt64(src[0:8]), src[8] != 0, nil
}

// --------------------------------------------------------------------------
// Metadata map
// --------------------------------------------------------------------------

// EncodeMetadata encodes a key/value string map as a single blob:
// count uint32, then per pair a uint32-length-prefixed key and value.
// The blob is chunked across packets by the transport when it exceeds one
// packet's payload capacity.
func EncodeMetadata(m map[string]string) []byte {
	size := 4
	for k, v := range m {
		size += 8 + len(k) + len(v)
	}

	blob := make([]byte, size)
	binary.BigEndian.PutUint32(blob[0:4], uint32(len(m)))
	pos := 4
	for k, v := range m {
		binary.BigEndian.PutUint32(blob[pos:pos+4], uint32(len(k)))
		pos += 4
		pos += copy(blob[pos:], k)
		binary.BigEndian.PutUint32(blob[pos:pos+4], uint32(len(v)))
		pos += 4
		pos += copy(blob[pos:], v)
	}
	return blob
}

// DecodeMetadata decodes a metadata blob produced by EncodeMetadata
func DecodeMetadata(blob []byte) (map[string]string, error) {
	if len(blob) < 4 {
		return nil, ErrPayloadTruncated
	}
	count := binary.BigEndian.Uint32(blob[0:4])
	pos := 4

	readChunk := func() ([]byte, error) {
		if len(blob) < pos+4 {
			return nil, ErrPayloadTruncated
		}
		l := int(binary.BigEndian.Uint32(blob[pos : pos+4]))
		pos += 4
		if len(blob) < pos+l {
			return nil, ErrPayloadTruncated
		}
		chunk := blob[pos : pos+l]
		pos += l
		return chunk, nil
	}

	// The declared count is peer-controlled; each pair needs at least 8 bytes
	// of length prefixes, so anything beyond len(blob)/8 cannot be real and
	// must not size the allocation
	hint := int(count)
	if max := len(blob) / 8; hint > max {
		hint = max
	}

	m := make(map[string]string, hint)
	for i := uint32(0); i < count; i++ {
		key, err := readChunk()
		if err != nil {
			return nil, err
		}
		value, err := readChunk()
		if err != nil {
			return nil, err
		}
		m[string(key)] = string(value)
	}
	return m, nil
}

// --------------------------------------------------------------------------
// Ack
// --------------------------------------------------------------------------

// AckStatus classifies an ack packet
type AckStatus uint8

const (
	// AckBusy rejects a request because the exchange pool is exhausted
	AckBusy AckStatus = 1
	// AckFault reports that the peer's local processing failed
	AckFault AckStatus = 2
)

// String returns the string representation of an AckStatus.
func (s AckStatus) String() string {
	switch s {
	case AckBusy:
		return "busy"
	case AckFault:
		return "fault"
	default:
		return "unknown"
	}
}

// EncodeAck writes an ack payload (status byte plus optional message) into dst
func EncodeAck(dst []byte, status AckStatus, msg string) (int, error) {
	if len(dst) < 1+len(msg) {
		return 0, ErrBufferTooSmall
	}
	dst[0] = byte(status)
	copy(dst[1:], msg)
	return 1 + len(msg), nil
}

// DecodeAck reads an ack payload from src
func DecodeAck(src []byte) (AckStatus, string, error) {
	if len(src) < 1 {
		return 0, "", ErrPayloadTruncated
	}
	status := AckStatus(src[0])
	if status != AckBusy && status != AckFault {
		return 0, "", fmt.Errorf("wire: unknown ack status %d", src[0])
	}
	return status, string(src[1:]), nil
}
