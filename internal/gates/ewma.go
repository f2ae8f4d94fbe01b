package gates

import "github.com/shopspring/decimal"

// ewma is an exponentially weighted moving average with a fixed smoothing
// factor, tracked per market by the SpreadShock gate (§4.3 #5).
type ewma struct {
	value       decimal.Decimal
	initialized bool
	alpha       decimal.Decimal
}

func newEwma(alpha decimal.Decimal) *ewma {
	return &ewma{alpha: alpha}
}

// update folds in a new sample and returns the updated value. The first
// sample seeds the average directly.
func (e *ewma) update(sample decimal.Decimal) decimal.Decimal {
	if !e.initialized {
		e.value = sample
		e.initialized = true
		return e.value
	}
	e.value = e.alpha.Mul(sample).Add(decimal.NewFromInt(1).Sub(e.alpha).Mul(e.value))
	return e.value
}

func (e *ewma) current() (decimal.Decimal, bool) {
	return e.value, e.initialized
}
