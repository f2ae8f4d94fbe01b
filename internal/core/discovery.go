package core

import (
	"sync"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/internal/restclient"
	"hyperdrift-taker/internal/specs"
	"hyperdrift-taker/pkg/domain"
)

// marketState is the periodically-refreshed, REST-sourced state the gate
// pipeline needs but the WS market-data stream does not carry: current
// open interest (the activeAssetCtx wire payload has it, but
// domain.OracleCtx was scoped to oracle/mark only, so it never reaches
// the aggregator) and whether the exchange still lists the asset as
// active (the Halt gate, §4.3 #8).
type marketState struct {
	openInterest decimal.Decimal
	halted       bool
}

// discoveryTracker holds the latest REST-polled per-market state and
// detects the tick/lot/fee parameter drift the ParamChange gate (§4.3
// #7) blocks on. Once a market is flagged changed it stays flagged:
// nothing in this system re-admits a market whose contract terms moved
// out from under an in-flight strategy without an operator restart.
type discoveryTracker struct {
	mu           sync.RWMutex
	state        map[domain.MarketKey]marketState
	paramChanged map[domain.MarketKey]bool
}

func newDiscoveryTracker() *discoveryTracker {
	return &discoveryTracker{
		state:        make(map[domain.MarketKey]marketState),
		paramChanged: make(map[domain.MarketKey]bool),
	}
}

// Refresh folds a fresh Discover() call into the tracker: it updates
// open interest and active/halted status unconditionally, and runs
// every returned spec through specsCache.UpdateSpec to pick up the
// cache's own changed-detection, latching paramChanged for any market
// whose rounding/fee parameters moved.
func (d *discoveryTracker) Refresh(cache *specs.Cache, infos []restclient.MarketInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, info := range infos {
		d.state[info.Key] = marketState{
			openInterest: info.OpenInterest,
			halted:       !info.Spec.IsActive,
		}
		if cache.UpdateSpec(info.Key, info.Spec) {
			d.paramChanged[info.Key] = true
		}
	}
}

func (d *discoveryTracker) OpenInterest(key domain.MarketKey) decimal.Decimal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state[key].openInterest
}

func (d *discoveryTracker) Halted(key domain.MarketKey) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state[key].halted
}

func (d *discoveryTracker) ParamChanged(key domain.MarketKey) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.paramChanged[key]
}
