package base

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/ValentinKolb/raftex/raft/wire"
)

// ErrFrameTooLarge is returned when a peer announces a payload larger than
// the framing buffer. The stream position is lost at that point, so the
// error is connection-fatal.
var ErrFrameTooLarge = errors.New("transport: packet exceeds framing buffer")

// writeFrame writes one packet (header plus payload) to the connection in a
// single vectored write
func writeFrame(conn net.Conn, h wire.Header, payload []byte) error {
	var hdr [wire.HeaderSize]byte
	if err := wire.EncodeHeader(hdr[:], h); err != nil {
		return err
	}

	b := net.Buffers{hdr[:], payload}
	if len(payload) == 0 {
		// A zero-length buffer triggers a zero-byte Write, which blocks
		// forever on net.Pipe; the wire bytes are identical without it.
		b = net.Buffers{hdr[:]}
	}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one packet from the connection into buf and returns its
// header and payload. The payload slice aliases buf and is only valid until
// the next read.
func readFrame(conn net.Conn, buf []byte) (wire.Header, []byte, error) {
	if _, err := io.ReadFull(conn, buf[:wire.HeaderSize]); err != nil {
		return wire.Header{}, nil, err
	}

	h, err := wire.DecodeHeader(buf[:wire.HeaderSize])
	if err != nil {
		return wire.Header{}, nil, err
	}

	if int(h.Length) > len(buf) {
		return wire.Header{}, nil, fmt.Errorf("%w: %d byte payload, %d byte buffer", ErrFrameTooLarge, h.Length, len(buf))
	}

	if h.Length == 0 {
		return h, buf[:0], nil
	}

	if _, err := io.ReadFull(conn, buf[:h.Length]); err != nil {
		return wire.Header{}, nil, err
	}
	return h, buf[:h.Length], nil
}
