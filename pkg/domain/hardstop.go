package domain

import "sync/atomic"

// HardStopLatch is a set-once (set-if-absent), explicitly-released gate.
// Once tripped it stays tripped — every executor gate checks it on every
// tick — until something with the authority to do so calls Release. No
// gate implicitly clears it; a tripped latch never self-heals.
type HardStopLatch struct {
	tripped atomic.Bool
	reason  atomic.Value // string
}

// Trip sets the latch if not already set, recording reason on the
// transition. Reports whether this call performed the transition.
func (h *HardStopLatch) Trip(reason string) bool {
	if h.tripped.CompareAndSwap(false, true) {
		h.reason.Store(reason)
		return true
	}
	return false
}

// IsTripped reports the current state.
func (h *HardStopLatch) IsTripped() bool { return h.tripped.Load() }

// Reason returns the reason recorded by the transition that tripped the
// latch, or "" if it has never tripped.
func (h *HardStopLatch) Reason() string {
	v := h.reason.Load()
	if v == nil {
		return ""
	}
	return v.(string)
}

// Release clears the latch. The operator-facing control path calls
// this, and the WS session releases its own reconnect trip once
// READY-TRADING is latched again.
func (h *HardStopLatch) Release() {
	h.tripped.Store(false)
	h.reason.Store("")
}
