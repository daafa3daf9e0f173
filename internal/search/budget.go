package search

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"jobscout/internal/discovery"
)

// ErrBudgetExhausted is returned when a call is skipped because the run's quota is spent
var ErrBudgetExhausted = discovery.ErrBudgetExhausted

// Quota is the process-wide pool of paid search calls. Every run draws from
// the same Quota, so concurrent runs together never issue more than calls
// within one window. Spent calls come back at calls per window.
type Quota struct {
	limiter *rate.Limiter
	calls   int
	window  time.Duration
	denied  atomic.Int64
}

// NewQuota creates a pool of calls that refills over window. A non-positive
// window refills the whole pool only after an hour.
func NewQuota(calls int, window time.Duration) *Quota {
	if calls < 0 {
		calls = 0
	}
	if window <= 0 {
		window = time.Hour
	}
	every := window
	if calls > 0 {
		every = window / time.Duration(calls)
	}
	return &Quota{
		limiter: rate.NewLimiter(rate.Every(every), calls),
		calls:   calls,
		window:  window,
	}
}

// Take removes one call from the pool without waiting
func (q *Quota) Take() bool {
	if q.calls > 0 && q.limiter.Allow() {
		return true
	}
	q.denied.Add(1)
	return false
}

// Available returns the whole calls currently left in the pool
func (q *Quota) Available() int {
	if q.calls == 0 {
		return 0
	}
	return int(q.limiter.Tokens())
}

// Denied returns how many Take calls found the pool empty
func (q *Quota) Denied() int { return int(q.denied.Load()) }

// Calls returns the pool size
func (q *Quota) Calls() int { return q.calls }

// Window returns the refill window
func (q *Quota) Window() time.Duration { return q.window }

// Budget is one run's handle on the search call quota. It caps the run at
// limit calls and, when attached to a Quota, also takes every call from the
// shared pool. It is safe for concurrent use and never goes below zero.
type Budget struct {
	limit     int64
	remaining atomic.Int64
	skipped   atomic.Int64
	shared    *Quota
}

var _ discovery.Budget = (*Budget)(nil)

// NewBudget creates a standalone budget of limit calls. A negative limit is treated as zero.
func NewBudget(limit int) *Budget {
	return NewSharedBudget(limit, nil)
}

// NewSharedBudget creates a budget of limit calls drawn from quota
func NewSharedBudget(limit int, quota *Quota) *Budget {
	if limit < 0 {
		limit = 0
	}
	b := &Budget{limit: int64(limit), shared: quota}
	b.remaining.Store(int64(limit))
	return b
}

// BudgetFactory returns a discovery budget factory bound to quota
func BudgetFactory(quota *Quota) func(limit int) discovery.Budget {
	return func(limit int) discovery.Budget {
		return NewSharedBudget(limit, quota)
	}
}

// Acquire takes one call from the run's quota and then from the shared pool
func (b *Budget) Acquire() bool {
	for {
		cur := b.remaining.Load()
		if cur <= 0 {
			b.skipped.Add(1)
			return false
		}
		if b.remaining.CompareAndSwap(cur, cur-1) {
			break
		}
	}
	if b.shared != nil && !b.shared.Take() {
		// the call never happened, so it does not count as used
		b.remaining.Add(1)
		b.skipped.Add(1)
		return false
	}
	return true
}

// Used returns how many calls were taken
func (b *Budget) Used() int { return int(b.limit - b.remaining.Load()) }

// Remaining returns how many calls are left for this run
func (b *Budget) Remaining() int { return int(b.remaining.Load()) }

// Skipped returns how many Acquire calls were refused
func (b *Budget) Skipped() int { return int(b.skipped.Load()) }

// Limit returns the run's quota size
func (b *Budget) Limit() int { return int(b.limit) }
