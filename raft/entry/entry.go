// Package entry defines the log-entry abstraction relayed by the raft
// transport. The transport only ever holds a transient buffered copy of an
// entry while relaying it; durable ownership stays with the log storage of
// the encompassing application.
package entry

import (
	"io"
	"time"
)

// --------------------------------------------------------------------------
// Entry interface
// --------------------------------------------------------------------------

// Entry is a single log entry as seen by the transport. Content is streamed
// via WriteTo so large entries never need to be materialized by the sender.
type Entry interface {
	// Term is the term the entry was created in
	Term() int64

	// Timestamp is the creation time of the entry
	Timestamp() time.Time

	// IsSnapshot reports whether the entry represents a snapshot
	IsSnapshot() bool

	// Length returns the content size in bytes if known up front
	Length() (int64, bool)

	// WriteTo streams the content to w
	WriteTo(w io.Writer) (int64, error)
}

// --------------------------------------------------------------------------
// Buffered implementation
// --------------------------------------------------------------------------

// BufferedEntry is an in-memory Entry. The transport uses it for transit
// copies of received entries; tests and small payloads use it directly.
type BufferedEntry struct {
	term      int64
	timestamp time.Time
	snapshot  bool
	content   []byte
}

// NewBufferedEntry creates a new in-memory entry. The content slice is not
// copied; the caller must not mutate it afterwards.
func NewBufferedEntry(term int64, timestamp time.Time, snapshot bool, content []byte) *BufferedEntry {
	return &BufferedEntry{
		term:      term,
		timestamp: timestamp,
		snapshot:  snapshot,
		content:   content,
	}
}

func (e *BufferedEntry) Term() int64          { return e.term }
func (e *BufferedEntry) Timestamp() time.Time { return e.timestamp }
func (e *BufferedEntry) IsSnapshot() bool     { return e.snapshot }

func (e *BufferedEntry) Length() (int64, bool) {
	return int64(len(e.content)), true
}

func (e *BufferedEntry) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(e.content)
	return int64(n), err
}

// Content returns the entry's content bytes without copying
func (e *BufferedEntry) Content() []byte { return e.content }

// --------------------------------------------------------------------------
// Producer
// --------------------------------------------------------------------------

// Producer is a pull iterator over a batch of entries. The local member
// facade receives one when entries arrive and may consume any prefix of the
// batch; unconsumed entries are discarded by the transport.
type Producer interface {
	// Next returns the next entry, or false when the batch is exhausted
	Next() (Entry, bool)

	// Remaining is the number of entries not yet produced
	Remaining() int
}

type sliceProducer struct {
	entries []Entry
	pos     int
}

// NewSliceProducer creates a Producer over a fixed slice of entries
func NewSliceProducer(entries []Entry) Producer {
	return &sliceProducer{entries: entries}
}

func (p *sliceProducer) Next() (Entry, bool) {
	if p.pos >= len(p.entries) {
		return nil, false
	}
	e := p.entries[p.pos]
	p.pos++
	return e, true
}

func (p *sliceProducer) Remaining() int {
	return len(p.entries) - p.pos
}
