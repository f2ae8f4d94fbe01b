package core

import (
	"sync"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/internal/detector"
	"hyperdrift-taker/pkg/domain"
)

// trendTracker remembers each market's last-seen oracle price and the
// trend it implied, so the detector's optional oracle-direction filter
// (§4.4) can be fed a Rising/Falling classification without the
// aggregator itself owning any derived statistics (per §4.2, the
// aggregator is a pure snapshot store; rolling computation belongs to
// callers).
type trendTracker struct {
	mu    sync.Mutex
	price map[domain.MarketKey]decimal.Decimal
	trend map[domain.MarketKey]detector.OracleTrend
}

func newTrendTracker() *trendTracker {
	return &trendTracker{
		price: make(map[domain.MarketKey]decimal.Decimal),
		trend: make(map[domain.MarketKey]detector.OracleTrend),
	}
}

// Observe records the latest oracle price and returns (and remembers)
// the trend implied relative to the previous observation.
func (t *trendTracker) Observe(key domain.MarketKey, oraclePx decimal.Decimal) detector.OracleTrend {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.price[key]
	t.price[key] = oraclePx

	var trend detector.OracleTrend
	if ok {
		switch {
		case oraclePx.GreaterThan(prev):
			trend = detector.OracleTrend{Rising: true}
		case oraclePx.LessThan(prev):
			trend = detector.OracleTrend{Falling: true}
		}
	}
	t.trend[key] = trend
	return trend
}

// Last returns the most recently computed trend for key without folding
// in a new observation, for callers (a bbo-only tick) that have no
// fresh oracle price of their own to report.
func (t *trendTracker) Last(key domain.MarketKey) detector.OracleTrend {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trend[key]
}
