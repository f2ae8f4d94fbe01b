package wsclient

import (
	"sync"
	"sync/atomic"

	"hyperdrift-taker/pkg/domain"
)

// readyState tracks the four independent flags the session's READY
// state machine requires (§4.1): per-market BBO+ctx observation, the
// two subscription ACKs, and the out-of-band position sync. Any
// disconnect resets all four via reset().
type readyState struct {
	mu          sync.Mutex
	seenBbo     map[domain.MarketKey]bool
	seenCtx     map[domain.MarketKey]bool
	desired     map[domain.MarketKey]bool

	orderUpdatesAcked atomic.Bool
	fillsAcked        atomic.Bool
	positionSynced    atomic.Bool
}

func newReadyState() *readyState {
	return &readyState{
		seenBbo: make(map[domain.MarketKey]bool),
		seenCtx: make(map[domain.MarketKey]bool),
		desired: make(map[domain.MarketKey]bool),
	}
}

func (r *readyState) setDesiredMarkets(keys []domain.MarketKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.desired = make(map[domain.MarketKey]bool, len(keys))
	for _, k := range keys {
		r.desired[k] = true
	}
}

func (r *readyState) markBbo(key domain.MarketKey) {
	r.mu.Lock()
	r.seenBbo[key] = true
	r.mu.Unlock()
}

func (r *readyState) markCtx(key domain.MarketKey) {
	r.mu.Lock()
	r.seenCtx[key] = true
	r.mu.Unlock()
}

// marketDataReady reports whether every desired market has had at
// least one BBO and one ctx observation since the last reset.
func (r *readyState) marketDataReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.desired) == 0 {
		return false
	}
	for k := range r.desired {
		if !r.seenBbo[k] || !r.seenCtx[k] {
			return false
		}
	}
	return true
}

func (r *readyState) setOrderUpdatesAcked() { r.orderUpdatesAcked.Store(true) }
func (r *readyState) setFillsAcked()        { r.fillsAcked.Store(true) }
func (r *readyState) setPositionSynced()    { r.positionSynced.Store(true) }

// ReadyObservationOnly reports whether market data alone is ready,
// sufficient for an observation-only session.
func (r *readyState) readyObservationOnly() bool { return r.marketDataReady() }

// ReadyTrading reports the full conjunction required before the
// executor gate may submit orders (the open-socket and hard-stop
// conjuncts are evaluated by the caller, not here).
func (r *readyState) readyTrading() bool {
	return r.marketDataReady() && r.orderUpdatesAcked.Load() && r.fillsAcked.Load() && r.positionSynced.Load()
}

// reset clears all four flags; called on every disconnect.
func (r *readyState) reset() {
	r.mu.Lock()
	r.seenBbo = make(map[domain.MarketKey]bool)
	r.seenCtx = make(map[domain.MarketKey]bool)
	r.mu.Unlock()
	r.orderUpdatesAcked.Store(false)
	r.fillsAcked.Store(false)
	r.positionSynced.Store(false)
}
