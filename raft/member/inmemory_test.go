package member

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ValentinKolb/raftex/raft/entry"
)

func testEntries(contents ...string) []entry.Entry {
	entries := make([]entry.Entry, 0, len(contents))
	for i, c := range contents {
		entries = append(entries, entry.NewBufferedEntry(int64(i+1), time.Unix(int64(1700000000+i), 0), false, []byte(c)))
	}
	return entries
}

// TestReceiveEntriesBehaviors tests prefix consumption for all behaviors
func TestReceiveEntriesBehaviors(t *testing.T) {
	tests := []struct {
		behavior ReceiveEntriesBehavior
		sent     []string
		stored   []string
	}{
		{ReceiveAll, []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{ReceiveFirst, []string{"a", "b", "c"}, []string{"a"}},
		{DropAll, []string{"a", "b", "c"}, nil},
		{DropFirst, []string{"a", "b", "c"}, []string{"b", "c"}},
		{ReceiveAll, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.behavior.String(), func(t *testing.T) {
			m := NewInMemoryMember(5)
			m.SetBehavior(tt.behavior)

			res, err := m.ReceiveEntries(context.Background(), "peer-1", 4, entry.NewSliceProducer(testEntries(tt.sent...)), 0, 0, 0)
			if err != nil {
				t.Fatalf("ReceiveEntries failed: %v", err)
			}
			if res.Term != 5 || !res.Value {
				t.Errorf("Result = %+v, want {Term:5 Value:true}", res)
			}

			stored := m.Entries()
			if len(stored) != len(tt.stored) {
				t.Fatalf("Stored %d entries, want %d", len(stored), len(tt.stored))
			}
			for i, want := range tt.stored {
				if !bytes.Equal(stored[i].Content(), []byte(want)) {
					t.Errorf("Entry %d content = %q, want %q", i, stored[i].Content(), want)
				}
			}
		})
	}
}

// TestReceiveVote tests vote results and the grant knob
func TestReceiveVote(t *testing.T) {
	m := NewInMemoryMember(9)

	res, err := m.ReceiveVote(context.Background(), "peer-1", 8, 100, 7)
	if err != nil {
		t.Fatalf("ReceiveVote failed: %v", err)
	}
	if res.Term != 9 || !res.Value {
		t.Errorf("Result = %+v, want {Term:9 Value:true}", res)
	}

	m.SetGrantVote(false)
	res, _ = m.ReceiveVote(context.Background(), "peer-1", 8, 100, 7)
	if res.Value {
		t.Error("Vote should not be granted after SetGrantVote(false)")
	}
}

// TestReceiveSnapshot tests snapshot storage
func TestReceiveSnapshot(t *testing.T) {
	m := NewInMemoryMember(3)
	snap := entry.NewBufferedEntry(2, time.Unix(1700000000, 0), true, []byte("snapshot state"))

	res, err := m.ReceiveSnapshot(context.Background(), "peer-1", 2, snap, 512)
	if err != nil {
		t.Fatalf("ReceiveSnapshot failed: %v", err)
	}
	if res.Term != 3 || !res.Value {
		t.Errorf("Result = %+v, want {Term:3 Value:true}", res)
	}

	stored, idx := m.Snapshot()
	if stored == nil || idx != 512 {
		t.Fatalf("Snapshot = (%v, %d), want stored entry at index 512", stored, idx)
	}
	if !bytes.Equal(stored.Content(), snap.Content()) {
		t.Errorf("Snapshot content = %q, want %q", stored.Content(), snap.Content())
	}
}

// TestResignAndMetadata tests the remaining facade operations
func TestResignAndMetadata(t *testing.T) {
	m := NewInMemoryMember(1)
	m.SetMetadata("location", "rack-7")
	m.SetMetadata("nodeVersion", "1.0.0")

	ok, err := m.Resign(context.Background())
	if err != nil || !ok {
		t.Fatalf("Resign = (%t, %v), want (true, nil)", ok, err)
	}
	if !m.Resigned() {
		t.Error("Resigned should report true after Resign")
	}

	meta, err := m.Metadata(context.Background())
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	want := map[string]string{"location": "rack-7", "nodeVersion": "1.0.0"}
	if !reflect.DeepEqual(meta, want) {
		t.Errorf("Metadata = %v, want %v", meta, want)
	}
}

// TestFailureInjection tests that injected errors surface on every operation
func TestFailureInjection(t *testing.T) {
	m := NewInMemoryMember(1)
	boom := errors.New("log store: disk full")
	m.SetFailure(boom)

	if _, err := m.ReceiveVote(context.Background(), "p", 1, 0, 0); !errors.Is(err, boom) {
		t.Errorf("ReceiveVote error = %v, want %v", err, boom)
	}
	if _, err := m.ReceiveEntries(context.Background(), "p", 1, entry.NewSliceProducer(nil), 0, 0, 0); !errors.Is(err, boom) {
		t.Errorf("ReceiveEntries error = %v, want %v", err, boom)
	}
	if _, err := m.Metadata(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Metadata error = %v, want %v", err, boom)
	}
}
