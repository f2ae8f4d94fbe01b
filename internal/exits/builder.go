// Package exits implements the two always-on exit monitors of §4.12:
// a time-stop failsafe and a mark-regression profit-taker. Both read
// positions from the position tracker's lock-free handle, build a
// reduce-only IOC via the shared FlattenOrderBuilder, and enqueue it on
// the executor's batch scheduler — never touching the network directly.
package exits

import (
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

var tenThousand = decimal.NewFromInt(10000)

// SpecLookup is satisfied by *specs.Cache.
type SpecLookup interface {
	Spec(key domain.MarketKey) (domain.MarketSpec, bool)
}

// FlattenOrderBuilder prices and sizes the one order shape both exit
// monitors ever submit: a reduce-only IOC that crosses the book by
// slippageBps to flatten a position quickly. Grounded on
// internal/detector/detector.go's own price/size rounding calls
// (RoundAwayFromMid / Floor) — the same rounding discipline applied to
// the opposite side of the book.
type FlattenOrderBuilder struct {
	specs SpecLookup
}

// NewFlattenOrderBuilder builds a FlattenOrderBuilder.
func NewFlattenOrderBuilder(specs SpecLookup) *FlattenOrderBuilder {
	return &FlattenOrderBuilder{specs: specs}
}

// Build prices a reduce-only IOC against snap's current BBO. A long
// position exits via a sell priced at best_bid · (1 − slippageBps/1e4);
// a short position exits via a buy priced at best_ask · (1 +
// slippageBps/1e4). Returns ok=false if the position is flat, the book
// is missing, or the position's size floors to zero at the market's
// lot size (nothing worth submitting).
func (b *FlattenOrderBuilder) Build(pos domain.Position, snap domain.Snapshot, slippageBps decimal.Decimal, now time.Time) (domain.PendingOrder, bool) {
	if pos.IsFlat() || !snap.HasBbo {
		return domain.PendingOrder{}, false
	}
	spec, ok := b.specs.Spec(pos.Key)
	if !ok {
		return domain.PendingOrder{}, false
	}

	slip := slippageBps.Div(tenThousand)

	var side domain.Side
	var rawPrice decimal.Decimal
	if pos.Side() == domain.Buy {
		side = domain.Sell
		rawPrice = snap.Bbo.Bid.Decimal.Mul(one.Sub(slip))
	} else {
		side = domain.Buy
		rawPrice = snap.Bbo.Ask.Decimal.Mul(one.Add(slip))
	}

	size := domain.NewSize(pos.Size.Abs()).Floor(spec)
	if size.IsZero() {
		return domain.PendingOrder{}, false
	}
	price := domain.NewPrice(rawPrice).RoundAwayFromMid(side == domain.Buy, spec)

	return domain.PendingOrder{
		Cloid:       domain.NewClientOrderId(),
		Key:         pos.Key,
		Side:        side,
		Price:       price,
		Size:        size,
		Tif:         domain.TifIoc,
		ReduceOnly:  true,
		SubmittedAt: now,
	}, true
}

var one = decimal.NewFromInt(1)

// decimal64 wraps a config-sourced float64 bps value as a decimal.
// Config carries bps thresholds as float64 (mapstructure/YAML native
// type); everywhere downstream of config loading is decimal.Decimal.
func decimal64(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
