package base

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/ValentinKolb/raftex/raft/wire"
)

// TestFrameRoundTrip tests that frames survive a write/read cycle over a pipe
func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		header  wire.Header
		payload []byte
	}{
		{
			name:    "empty payload",
			header:  wire.Header{Type: wire.MsgTMetadata, Flags: wire.FlagStreamStart | wire.FlagStreamEnd},
			payload: nil,
		},
		{
			name:    "small payload",
			header:  wire.Header{Type: wire.MsgTVote, Flags: wire.FlagStreamStart | wire.FlagStreamEnd},
			payload: []byte("vote request payload"),
		},
		{
			name:    "continuation chunk",
			header:  wire.Header{Type: wire.MsgTContinue, Flags: wire.FlagStreamEnd},
			payload: bytes.Repeat([]byte{0x42}, 1024),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := net.Pipe()
			defer a.Close()
			defer b.Close()

			tt.header.Length = uint32(len(tt.payload))

			errCh := make(chan error, 1)
			go func() {
				errCh <- writeFrame(a, tt.header, tt.payload)
			}()

			buf := make([]byte, 2048)
			h, payload, err := readFrame(b, buf)
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if err := <-errCh; err != nil {
				t.Fatalf("writeFrame failed: %v", err)
			}

			if h != tt.header {
				t.Errorf("Header = %+v, want %+v", h, tt.header)
			}
			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("Payload mismatch (%d bytes vs %d bytes)", len(payload), len(tt.payload))
			}
		})
	}
}

// TestFrameTooLarge tests that an oversized payload announcement is rejected
// without reading the payload
func TestFrameTooLarge(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		h := wire.Header{Type: wire.MsgTContinue, Length: 1 << 20}
		var hdr [wire.HeaderSize]byte
		wire.EncodeHeader(hdr[:], h)
		a.Write(hdr[:])
	}()

	buf := make([]byte, 256)
	_, _, err := readFrame(b, buf)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("readFrame error = %v, want ErrFrameTooLarge", err)
	}
}

// TestFrameRejectsUnknownType tests that garbage type bytes fail the decode
func TestFrameRejectsUnknownType(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		a.Write([]byte{0xFF, 0, 0, 0, 0, 0})
	}()

	buf := make([]byte, 256)
	_, _, err := readFrame(b, buf)
	if !errors.Is(err, wire.ErrUnknownMessageType) {
		t.Errorf("readFrame error = %v, want ErrUnknownMessageType", err)
	}
}
