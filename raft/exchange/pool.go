package exchange

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/wire"
	"github.com/VictoriaMetrics/metrics"
)

const (
	// DefaultPoolSize is the number of handlers when none is configured
	DefaultPoolSize = 16
	// MaxPoolSize is the hard upper bound (one bit per slot in the free map)
	MaxPoolSize = 64
)

// Pool is a fixed arena of reusable server exchange handlers shared across
// accepted connections. Rent and release are lock-free compare-and-swap
// operations over a free-slot bitmap, so the pool never allocates under
// load. Exhaustion is a backpressure signal, not an error.
type Pool struct {
	slots []*ServerExchange
	free  atomic.Uint64

	exhausted *metrics.Counter
}

// NewPool creates a pool of size handlers bound to the given member.
// Size is clamped to [1, MaxPoolSize]; 0 selects DefaultPoolSize.
func NewPool(m member.ILocalMember, size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if size > MaxPoolSize {
		size = MaxPoolSize
	}

	p := &Pool{
		slots:     make([]*ServerExchange, size),
		exhausted: metrics.GetOrCreateCounter(`raftex_exchange_pool_exhausted_total`),
	}
	for i := range p.slots {
		p.slots[i] = &ServerExchange{member: m, slot: i}
	}

	if size == MaxPoolSize {
		p.free.Store(^uint64(0))
	} else {
		p.free.Store(1<<uint(size) - 1)
	}
	return p
}

// Size returns the number of handler slots
func (p *Pool) Size() int {
	return len(p.slots)
}

// TryRent claims a free handler for the request classified by h. It returns
// false when every handler is bound to an in-flight request; the caller
// should then reject the request as busy.
func (p *Pool) TryRent(h wire.Header) (*ServerExchange, bool) {
	for {
		cur := p.free.Load()
		if cur == 0 {
			p.exhausted.Inc()
			return nil, false
		}

		i := bits.TrailingZeros64(cur)
		if p.free.CompareAndSwap(cur, cur&^(1<<uint(i))) {
			metrics.GetOrCreateCounter(
				fmt.Sprintf(`raftex_exchange_rented_total{kind=%q}`, h.Type),
			).Inc()
			return p.slots[i], true
		}
	}
}

// Release resets the handler and returns its slot to the free map. It must
// be called on every exit path of a rented exchange, faulted or not.
func (p *Pool) Release(x *ServerExchange) {
	x.Reset()
	bit := uint64(1) << uint(x.slot)
	for {
		cur := p.free.Load()
		if p.free.CompareAndSwap(cur, cur|bit) {
			return
		}
	}
}
