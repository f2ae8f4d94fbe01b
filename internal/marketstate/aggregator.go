// Package marketstate holds, for each MarketKey, the most recently
// observed BestBidOffer and OracleCtx, each stamped with its local
// receipt time (§4.2). No rolling statistics live here — those belong
// to the risk gates (internal/gates).
package marketstate

import (
	"sync"
	"time"

	"hyperdrift-taker/pkg/domain"
)

// entry is the per-market state; each MarketKey has exactly one writer
// (the WS session's dispatch loop), so only the map itself needs a lock.
type entry struct {
	bbo       domain.BestBidOffer
	hasBbo    bool
	ctx       domain.OracleCtx
	hasCtx    bool
	lastBboRecv  time.Time
	lastCtxRecv  time.Time
}

// Aggregator is the market-state store.
type Aggregator struct {
	mu      sync.RWMutex
	entries map[domain.MarketKey]*entry
	staleAfter time.Duration
}

// NewAggregator builds an aggregator that classifies a BBO/ctx pair as
// Stale once either feed's last receipt is older than staleAfter.
func NewAggregator(staleAfter time.Duration) *Aggregator {
	return &Aggregator{
		entries:    make(map[domain.MarketKey]*entry),
		staleAfter: staleAfter,
	}
}

// UpdateBbo overwrites the latest BBO for a market. Enforces the
// monotonic-receipt-time invariant: a regression (this call's local
// clock reading older than the last recorded one) is reported to the
// caller as a data-integrity fault instead of silently applied.
func (a *Aggregator) UpdateBbo(key domain.MarketKey, bbo domain.BestBidOffer) (regression bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.entryFor(key)
	if e.hasBbo && bbo.ReceivedAt.Before(e.lastBboRecv) {
		return true
	}
	e.bbo = bbo
	e.hasBbo = true
	e.lastBboRecv = bbo.ReceivedAt
	return false
}

// UpdateCtx overwrites the latest oracle context for a market, with the
// same monotonic-receipt-time enforcement as UpdateBbo.
func (a *Aggregator) UpdateCtx(key domain.MarketKey, ctx domain.OracleCtx) (regression bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.entryFor(key)
	if e.hasCtx && ctx.ReceivedAt.Before(e.lastCtxRecv) {
		return true
	}
	e.ctx = ctx
	e.hasCtx = true
	e.lastCtxRecv = ctx.ReceivedAt
	return false
}

func (a *Aggregator) entryFor(key domain.MarketKey) *entry {
	e, ok := a.entries[key]
	if !ok {
		e = &entry{}
		a.entries[key] = e
	}
	return e
}

// GetSnapshot returns the market's latest BBO/ctx pair classified at
// read time, or ok=false if the market has never been seen at all.
func (a *Aggregator) GetSnapshot(key domain.MarketKey, now time.Time) (domain.Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[key]
	if !ok {
		return domain.Snapshot{}, false
	}

	var bboAge, ctxAge time.Duration
	if e.hasBbo {
		bboAge = now.Sub(e.lastBboRecv)
	}
	if e.hasCtx {
		ctxAge = now.Sub(e.lastCtxRecv)
	}

	class := domain.Classify(e.hasBbo, e.hasCtx, bboAge, ctxAge, a.staleAfter)

	return domain.Snapshot{
		Key:       key,
		Bbo:       e.bbo,
		Oracle:    e.ctx,
		Class:     class,
		HasBbo:    e.hasBbo,
		HasOracle: e.hasCtx,
	}, true
}

// Reset clears a market's data-integrity fault state by dropping its
// entry entirely; the next update starts a fresh monotonic sequence.
// The reconnect path does not call it.
func (a *Aggregator) Reset(key domain.MarketKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, key)
}

// ResetAll clears every market's state. The reconnect path does not
// call it.
func (a *Aggregator) ResetAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[domain.MarketKey]*entry)
}
