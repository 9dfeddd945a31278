package member

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ValentinKolb/raftex/raft/entry"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Receive behavior
// --------------------------------------------------------------------------

// ReceiveEntriesBehavior controls how much of a received entry batch the
// in-memory member consumes. Real members decide this per raft log state;
// the knob makes the prefix-consumption contract of ReceiveEntries testable.
type ReceiveEntriesBehavior uint8

const (
	// ReceiveAll consumes and stores the whole batch
	ReceiveAll ReceiveEntriesBehavior = iota
	// ReceiveFirst consumes and stores only the first entry
	ReceiveFirst
	// DropAll consumes nothing
	DropAll
	// DropFirst skips the first entry and stores the rest
	DropFirst
)

// String returns the string representation of a ReceiveEntriesBehavior.
func (b ReceiveEntriesBehavior) String() string {
	switch b {
	case ReceiveAll:
		return "receiveAll"
	case ReceiveFirst:
		return "receiveFirst"
	case DropAll:
		return "dropAll"
	case DropFirst:
		return "dropFirst"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// In-memory member
// --------------------------------------------------------------------------

// InMemoryMember is a concurrency-safe ILocalMember that keeps everything in
// memory. It backs the demo server and the transport test suites.
type InMemoryMember struct {
	mu sync.Mutex

	term        int64
	grantVote   bool
	accept      bool
	behavior    ReceiveEntriesBehavior
	resigned    bool
	failWith    error
	entries     []*entry.BufferedEntry
	snapshot    *entry.BufferedEntry
	snapshotIdx int64

	metadata *xsync.MapOf[string, string]
}

// NewInMemoryMember creates a member that reports the given term, grants
// votes, accepts entries and consumes whole batches
func NewInMemoryMember(term int64) *InMemoryMember {
	return &InMemoryMember{
		term:      term,
		grantVote: true,
		accept:    true,
		behavior:  ReceiveAll,
		metadata:  xsync.NewMapOf[string, string](),
	}
}

// SetTerm sets the term reported in results
func (m *InMemoryMember) SetTerm(term int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.term = term
}

// SetGrantVote controls the outcome of ReceiveVote
func (m *InMemoryMember) SetGrantVote(grant bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantVote = grant
}

// SetAccept controls the outcome of ReceiveEntries and ReceiveSnapshot
func (m *InMemoryMember) SetAccept(accept bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accept = accept
}

// SetBehavior controls how much of an entry batch is consumed
func (m *InMemoryMember) SetBehavior(b ReceiveEntriesBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behavior = b
}

// SetFailure makes every facade operation fail with err (nil clears)
func (m *InMemoryMember) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SetMetadata stores a metadata key/value pair
func (m *InMemoryMember) SetMetadata(key, value string) {
	m.metadata.Store(key, value)
}

// Entries returns a copy of the stored entry slice
func (m *InMemoryMember) Entries() []*entry.BufferedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entry.BufferedEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Snapshot returns the stored snapshot entry and its index
func (m *InMemoryMember) Snapshot() (*entry.BufferedEntry, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot, m.snapshotIdx
}

// Resigned reports whether Resign was called
func (m *InMemoryMember) Resigned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resigned
}

// --------------------------------------------------------------------------
// Interface Methods (docu see interface.go)
// --------------------------------------------------------------------------

func (m *InMemoryMember) ReceiveVote(_ context.Context, _ string, _, _, _ int64) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return Result{}, m.failWith
	}
	return Result{Term: m.term, Value: m.grantVote}, nil
}

func (m *InMemoryMember) ReceiveEntries(_ context.Context, _ string, _ int64, entries entry.Producer, _, _, _ int64) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return Result{}, m.failWith
	}

	consume := func(store bool) error {
		e, ok := entries.Next()
		if !ok {
			return nil
		}
		if !store {
			return nil
		}
		buffered, err := bufferEntry(e)
		if err != nil {
			return err
		}
		m.entries = append(m.entries, buffered)
		return nil
	}

	switch m.behavior {
	case ReceiveAll:
		for entries.Remaining() > 0 {
			if err := consume(true); err != nil {
				return Result{}, err
			}
		}
	case ReceiveFirst:
		if err := consume(true); err != nil {
			return Result{}, err
		}
	case DropAll:
		// nothing consumed
	case DropFirst:
		if err := consume(false); err != nil {
			return Result{}, err
		}
		for entries.Remaining() > 0 {
			if err := consume(true); err != nil {
				return Result{}, err
			}
		}
	}

	return Result{Term: m.term, Value: m.accept}, nil
}

func (m *InMemoryMember) ReceiveSnapshot(_ context.Context, _ string, _ int64, snapshot entry.Entry, snapshotIndex int64) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return Result{}, m.failWith
	}

	buffered, err := bufferEntry(snapshot)
	if err != nil {
		return Result{}, err
	}
	m.snapshot = buffered
	m.snapshotIdx = snapshotIndex

	return Result{Term: m.term, Value: m.accept}, nil
}

func (m *InMemoryMember) Resign(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	m.resigned = true
	return true, nil
}

func (m *InMemoryMember) Metadata(_ context.Context) (map[string]string, error) {
	m.mu.Lock()
	failWith := m.failWith
	m.mu.Unlock()
	if failWith != nil {
		return nil, failWith
	}

	out := make(map[string]string)
	m.metadata.Range(func(key, value string) bool {
		out[key] = value
		return true
	})
	return out, nil
}

// bufferEntry materializes an entry into an in-memory copy
func bufferEntry(e entry.Entry) (*entry.BufferedEntry, error) {
	var buf bytes.Buffer
	if length, known := e.Length(); known {
		buf.Grow(int(length))
	}
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("member: failed to buffer entry: %w", err)
	}
	return entry.NewBufferedEntry(e.Term(), e.Timestamp(), e.IsSnapshot(), buf.Bytes()), nil
}
