package exchange

import (
	"sync"
	"testing"

	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/wire"
)

// TestPoolSizeClamping tests the size bounds of the handler arena
func TestPoolSizeClamping(t *testing.T) {
	m := member.NewInMemoryMember(1)

	tests := []struct {
		name string
		size int
		want int
	}{
		{"zero selects default", 0, DefaultPoolSize},
		{"negative selects default", -3, DefaultPoolSize},
		{"in range kept", 8, 8},
		{"max kept", MaxPoolSize, MaxPoolSize},
		{"above max clamped", MaxPoolSize + 100, MaxPoolSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewPool(m, tt.size).Size(); got != tt.want {
				t.Errorf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestPoolRentDistinctHandlers tests that rentals never hand out the same
// handler twice
func TestPoolRentDistinctHandlers(t *testing.T) {
	pool := NewPool(member.NewInMemoryMember(1), 8)
	h := wire.Header{Type: wire.MsgTVote}

	seen := make(map[*ServerExchange]bool)
	for i := 0; i < pool.Size(); i++ {
		x, ok := pool.TryRent(h)
		if !ok {
			t.Fatalf("TryRent %d failed with %d slots", i, pool.Size())
		}
		if seen[x] {
			t.Fatalf("TryRent %d returned an already rented handler", i)
		}
		seen[x] = true
	}
}

// TestPoolExhaustionAndRelease tests the busy signal and slot recycling
func TestPoolExhaustionAndRelease(t *testing.T) {
	pool := NewPool(member.NewInMemoryMember(1), 2)
	h := wire.Header{Type: wire.MsgTHeartbeat}

	a, _ := pool.TryRent(h)
	b, _ := pool.TryRent(h)
	if a == nil || b == nil {
		t.Fatal("Renting up to capacity must succeed")
	}

	if x, ok := pool.TryRent(h); ok {
		t.Fatalf("TryRent on an exhausted pool returned %v, want busy", x)
	}

	pool.Release(a)
	c, ok := pool.TryRent(h)
	if !ok {
		t.Fatal("TryRent after release failed")
	}
	if c != a {
		t.Error("Released slot should be rentable again")
	}
}

// TestPoolReleaseResetsHandler tests that a released handler carries no
// residual request state
func TestPoolReleaseResetsHandler(t *testing.T) {
	pool := NewPool(member.NewInMemoryMember(1), 1)

	x, _ := pool.TryRent(wire.Header{Type: wire.MsgTVote})
	x.kind = wire.MsgTAppendEntries
	x.expected = 5
	x.faultMsg = "boom"
	pool.Release(x)

	y, _ := pool.TryRent(wire.Header{Type: wire.MsgTVote})
	if y.kind != wire.MsgTUnknown || y.expected != 0 || y.faultMsg != "" {
		t.Errorf("Handler not reset on release: kind=%s expected=%d faultMsg=%q", y.kind, y.expected, y.faultMsg)
	}
}

// TestPoolConcurrentRentRelease hammers the bitmap from many goroutines and
// checks that no handler is ever held twice
func TestPoolConcurrentRentRelease(t *testing.T) {
	pool := NewPool(member.NewInMemoryMember(1), 4)
	h := wire.Header{Type: wire.MsgTVote}

	var mu sync.Mutex
	held := make(map[*ServerExchange]bool)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				x, ok := pool.TryRent(h)
				if !ok {
					continue
				}

				mu.Lock()
				if held[x] {
					mu.Unlock()
					t.Error("Handler rented while already held")
					return
				}
				held[x] = true
				mu.Unlock()

				mu.Lock()
				held[x] = false
				mu.Unlock()
				pool.Release(x)
			}
		}()
	}
	wg.Wait()
}
