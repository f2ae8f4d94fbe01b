package domain

import "github.com/shopspring/decimal"

// Price and Size are fixed-point decimal values (shopspring/decimal,
// ≥28-digit significand) used on every financial code path. No binary
// float ever touches a price or size comparison or arithmetic operation.

// Price is a decimal price quote.
type Price struct{ decimal.Decimal }

// NewPrice wraps a decimal.Decimal as a Price.
func NewPrice(d decimal.Decimal) Price { return Price{d} }

// PriceFromFloat is a convenience constructor for tests and literals;
// never used on a path that reads exchange-sourced data (those parse
// the wire string directly into decimal.Decimal to avoid float roundtrip).
func PriceFromFloat(f float64) Price { return Price{decimal.NewFromFloat(f)} }

// Size is a decimal order/position size.
type Size struct{ decimal.Decimal }

// NewSize wraps a decimal.Decimal as a Size.
func NewSize(d decimal.Decimal) Size { return Size{d} }

// SizeFromFloat is a convenience constructor for tests and literals.
func SizeFromFloat(f float64) Size { return Size{decimal.NewFromFloat(f)} }

// RoundAwayFromMid rounds a price to the market's tick size, away from
// the mid: a buy rounds down (never overpays on the limit it posts),
// a sell rounds up. Idempotent — rounding an already-rounded price is a no-op.
func (p Price) RoundAwayFromMid(isBuy bool, spec MarketSpec) Price {
	if spec.TickSize.IsZero() {
		return p
	}
	steps := p.Decimal.Div(spec.TickSize)
	if isBuy {
		steps = steps.Floor()
	} else {
		steps = steps.Ceil()
	}
	return Price{steps.Mul(spec.TickSize)}
}

// Floor rounds a size down to the market's lot size. Idempotent.
func (s Size) Floor(spec MarketSpec) Size {
	if spec.LotSize.IsZero() {
		return s
	}
	steps := s.Decimal.Div(spec.LotSize).Floor()
	return Size{steps.Mul(spec.LotSize)}
}

// IsZero reports whether a rounded size collapsed to zero. The detector
// treats this as "no signal", never as a silent size of zero submitted downstream.
func (s Size) IsZero() bool { return s.Decimal.IsZero() }
