package entry

import (
	"bytes"
	"testing"
	"time"
)

// TestBufferedEntry tests the in-memory entry implementation
func TestBufferedEntry(t *testing.T) {
	ts := time.Unix(1700000000, 42)
	content := []byte("log entry content")

	e := NewBufferedEntry(7, ts, true, content)

	if e.Term() != 7 {
		t.Errorf("Term = %d, want 7", e.Term())
	}
	if !e.Timestamp().Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp(), ts)
	}
	if !e.IsSnapshot() {
		t.Error("IsSnapshot = false, want true")
	}

	length, known := e.Length()
	if !known || length != int64(len(content)) {
		t.Errorf("Length = (%d, %t), want (%d, true)", length, known, len(content))
	}

	var buf bytes.Buffer
	n, err := e.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != int64(len(content)) || !bytes.Equal(buf.Bytes(), content) {
		t.Errorf("WriteTo wrote %d bytes %q, want %d bytes %q", n, buf.Bytes(), len(content), content)
	}
}

// TestSliceProducer tests prefix consumption semantics
func TestSliceProducer(t *testing.T) {
	entries := []Entry{
		NewBufferedEntry(1, time.Now(), false, []byte("a")),
		NewBufferedEntry(2, time.Now(), false, []byte("b")),
		NewBufferedEntry(3, time.Now(), false, []byte("c")),
	}

	p := NewSliceProducer(entries)
	if p.Remaining() != 3 {
		t.Fatalf("Remaining = %d, want 3", p.Remaining())
	}

	for i := 0; i < 3; i++ {
		e, ok := p.Next()
		if !ok {
			t.Fatalf("Next returned false at position %d", i)
		}
		if e.Term() != int64(i+1) {
			t.Errorf("Entry %d has term %d, want %d", i, e.Term(), i+1)
		}
	}

	if _, ok := p.Next(); ok {
		t.Error("Next should return false after exhaustion")
	}
	if p.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", p.Remaining())
	}
}

// TestSliceProducerEmpty tests the zero-entry batch
func TestSliceProducerEmpty(t *testing.T) {
	p := NewSliceProducer(nil)
	if p.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", p.Remaining())
	}
	if _, ok := p.Next(); ok {
		t.Error("Next on empty producer should return false")
	}
}
