package core

import (
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/internal/marketstate"
	"hyperdrift-taker/pkg/domain"
)

// markPriceLookup adapts *marketstate.Aggregator to executor.MarkPriceLookup,
// since the executor package deliberately depends on a narrow interface
// rather than the aggregator's full snapshot API.
type markPriceLookup struct {
	agg *marketstate.Aggregator
}

func newMarkPriceLookup(agg *marketstate.Aggregator) markPriceLookup {
	return markPriceLookup{agg: agg}
}

func (m markPriceLookup) MarkPrice(key domain.MarketKey) (decimal.Decimal, bool) {
	snap, ok := m.agg.GetSnapshot(key, time.Now())
	if !ok || !snap.HasOracle {
		return decimal.Decimal{}, false
	}
	return snap.Oracle.MarkPrice.Decimal, true
}
