package signer

import (
	"sync/atomic"
	"time"
)

const (
	driftWarnAt  = 2 * time.Second
	driftErrorAt = 5 * time.Second
)

// Clock is injected so nonce generation is deterministic under test.
type Clock interface {
	NowMs() int64
}

// SystemClock is the production Clock, backed by wall time.
type SystemClock struct{}

func (SystemClock) NowMs() int64 { return time.Now().UnixMilli() }

// DriftLevel classifies server-time drift magnitude for the caller to
// log at the right severity.
type DriftLevel int

const (
	DriftNone DriftLevel = iota
	DriftWarn
	DriftError
)

// Manager generates nonces that are strictly monotonically increasing
// across restarts when local time moves forward, tolerant of bounded
// drift against server time, and never repeating (§4.8).
type Manager struct {
	clock   Clock
	counter atomic.Int64 // last-issued nonce
	offset  atomic.Int64 // server_now_ms - local_now_ms, updated by Sync
}

// NewManager builds a Manager seeded so the first Next() call returns a
// value at or after the current wall clock.
func NewManager(clock Clock) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	m := &Manager{clock: clock}
	m.counter.Store(clock.NowMs() - 1)
	return m
}

// Next returns the next nonce via a CAS loop: counter = max(last+1, approx_server_now_ms).
func (m *Manager) Next() int64 {
	for {
		last := m.counter.Load()
		candidate := last + 1
		approxServerNow := m.clock.NowMs() + m.offset.Load()
		if approxServerNow > candidate {
			candidate = approxServerNow
		}
		if m.counter.CompareAndSwap(last, candidate) {
			return candidate
		}
	}
}

// Sync recomputes the server-time offset from a freshly observed server
// timestamp and reports the resulting drift severity.
func (m *Manager) Sync(serverNowMs int64) DriftLevel {
	localNow := m.clock.NowMs()
	delta := serverNowMs - localNow
	m.offset.Store(delta)

	abs := delta
	if abs < 0 {
		abs = -abs
	}
	switch {
	case time.Duration(abs)*time.Millisecond > driftErrorAt:
		return DriftError
	case time.Duration(abs)*time.Millisecond > driftWarnAt:
		return DriftWarn
	default:
		return DriftNone
	}
}
