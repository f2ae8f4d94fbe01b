package domain

import "github.com/shopspring/decimal"

// MarketSpec holds the exchange-published parameters that govern
// rounding, sizing, and fees for one market. Populated at preflight and
// refreshed whenever the exchange reports a change (which trips the
// ParamChange gate for that market).
type MarketSpec struct {
	Name    string
	TickSize   decimal.Decimal // minimum price increment
	LotSize    decimal.Decimal // minimum size increment
	SzDecimals int             // decimals the exchange accepts for size
	MinSize    decimal.Decimal
	MaxLeverage int
	// TakerFeeBps already carries the HIP-3 2x multiplier applied at
	// construction time (NewMarketSpec), never re-applied downstream.
	TakerFeeBps decimal.Decimal
	IsActive    bool
}

// hip3FeeMultiplier is applied once, at spec construction, to the
// exchange-published base taker fee.
const hip3FeeMultiplier = 2

// NewMarketSpec builds a MarketSpec from exchange-published fields,
// applying the HIP-3 taker-fee multiplier exactly once.
func NewMarketSpec(name string, tick, lot decimal.Decimal, szDecimals int, minSize decimal.Decimal, maxLeverage int, baseTakerFeeBps decimal.Decimal) MarketSpec {
	return MarketSpec{
		Name:        name,
		TickSize:    tick,
		LotSize:     lot,
		SzDecimals:  szDecimals,
		MinSize:     minSize,
		MaxLeverage: maxLeverage,
		TakerFeeBps: baseTakerFeeBps.Mul(decimal.NewFromInt(hip3FeeMultiplier)),
		IsActive:    true,
	}
}

// MaxPriceDecimals returns 6 - SzDecimals, the exchange-wide rule that
// caps price precision as a function of size precision.
func (m MarketSpec) MaxPriceDecimals() int {
	d := 6 - m.SzDecimals
	if d < 0 {
		return 0
	}
	return d
}

// SameRoundingParams reports whether tick, lot, and fee are unchanged
// from another spec snapshot — used by the ParamChange gate (§4.3 #7).
func (m MarketSpec) SameRoundingParams(other MarketSpec) bool {
	return m.TickSize.Equal(other.TickSize) &&
		m.LotSize.Equal(other.LotSize) &&
		m.TakerFeeBps.Equal(other.TakerFeeBps)
}
