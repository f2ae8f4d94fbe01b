package domain

import (
	"sync/atomic"
	"time"
)

// ActionBudget enforces a fixed number of actions per fixed window
// (the exchange's address-level rate limit) via a single CAS loop. The
// window index (time since the budget's epoch divided by the window
// length) and the count within it are packed into one int64 so both
// fields move together atomically: high 32 bits window index, low 32
// bits count.
type ActionBudget struct {
	packed    atomic.Int64
	limit     int32
	window    time.Duration
	epoch     time.Time
}

// NewActionBudget builds a budget allowing limit actions per window,
// starting now.
func NewActionBudget(limit int, window time.Duration) *ActionBudget {
	b := &ActionBudget{limit: int32(limit), window: window, epoch: time.Now()}
	b.packed.Store(pack(0, 0))
	return b
}

func pack(windowStart, count int32) int64 {
	return int64(windowStart)<<32 | int64(uint32(count))
}

func unpack(v int64) (windowStart, count int32) {
	return int32(v >> 32), int32(uint32(v))
}

func (b *ActionBudget) currentWindow() int32 {
	return int32(time.Since(b.epoch) / b.window)
}

// TryConsume attempts to debit one action against the current window,
// rolling over to a fresh window (and fresh count) when the window has
// advanced. Reports whether the action was admitted.
func (b *ActionBudget) TryConsume() bool {
	now := b.currentWindow()
	for {
		cur := b.packed.Load()
		ws, count := unpack(cur)
		if ws != now {
			ws, count = now, 0
		}
		if count >= b.limit {
			return false
		}
		if b.packed.CompareAndSwap(cur, pack(ws, count+1)) {
			return true
		}
	}
}

// Remaining reports the number of actions still available in the
// current window, rolling the window forward first if it has expired.
func (b *ActionBudget) Remaining() int {
	now := b.currentWindow()
	ws, count := unpack(b.packed.Load())
	if ws != now {
		return int(b.limit)
	}
	r := b.limit - count
	if r < 0 {
		return 0
	}
	return int(r)
}
