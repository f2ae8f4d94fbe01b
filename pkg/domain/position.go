package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the net position in one market: a signed size (positive
// long, negative short) and the volume-weighted average entry price of
// the current side. Flat is represented as zero Size with a zero entry.
type Position struct {
	Key        MarketKey
	Size       decimal.Decimal // signed: >0 long, <0 short
	EntryPrice decimal.Decimal
	RealizedPnl decimal.Decimal
	// OpenedAt is the exchange timestamp (local time when it carries
	// none; the seed time for a REST-seeded position) of the fill that took the
	// position from flat to non-flat. Reset to the zero value whenever
	// the position returns to flat, so a later re-open starts a fresh
	// holding-time clock. Exit monitors (internal/exits) use it for the
	// time-stop threshold and the mark-regression minimum holding time.
	OpenedAt time.Time
}

// IsFlat reports whether the position carries no size.
func (p Position) IsFlat() bool { return p.Size.IsZero() }

// Side returns the position's current side; undefined (Buy) when flat.
func (p Position) Side() Side {
	if p.Size.IsNegative() {
		return Sell
	}
	return Buy
}

// ApplyFill folds one fill into the position and returns the updated
// position plus the realized PnL delta from this fill alone. fillSize is
// unsigned; side is the side of the fill (the side the taker traded).
//
// Three cases, matched on whether the fill adds to, reduces, or flips
// the existing side:
//   - same side as current position (or flat): volume-weighted average
//     entry price, no realized PnL.
//   - opposite side, |fill| <= |position|: reduces size, realizes PnL
//     on the reduced portion at (fillPrice - entryPrice) signed by the
//     position's side, entry price unchanged.
//   - opposite side, |fill| > |position|: closes the existing position
//     (realizing PnL on all of it) and opens a new position on the
//     remainder at fillPrice.
func (p Position) ApplyFill(side Side, fillSize, fillPrice decimal.Decimal) (Position, decimal.Decimal) {
	signedFill := fillSize
	if side == Sell {
		signedFill = fillSize.Neg()
	}

	if p.IsFlat() || sameSign(p.Size, signedFill) {
		newSize := p.Size.Add(signedFill)
		var newEntry decimal.Decimal
		if p.IsFlat() {
			newEntry = fillPrice
		} else {
			// volume-weighted average of the two legs
			existingNotional := p.Size.Abs().Mul(p.EntryPrice)
			addedNotional := fillSize.Mul(fillPrice)
			newEntry = existingNotional.Add(addedNotional).Div(newSize.Abs())
		}
		return Position{Key: p.Key, Size: newSize, EntryPrice: newEntry, RealizedPnl: p.RealizedPnl}, decimal.Zero
	}

	posAbs := p.Size.Abs()
	if fillSize.LessThanOrEqual(posAbs) {
		// reduces (or exactly closes) the existing position
		pnl := fillSize.Mul(fillPrice.Sub(p.EntryPrice))
		if p.Side() == Sell {
			pnl = pnl.Neg()
		}
		newSize := p.Size.Add(signedFill)
		entry := p.EntryPrice
		if newSize.IsZero() {
			entry = decimal.Zero
		}
		return Position{Key: p.Key, Size: newSize, EntryPrice: entry, RealizedPnl: p.RealizedPnl.Add(pnl)}, pnl
	}

	// flips: close all of the existing position, open the remainder fresh
	closedSize := posAbs
	pnl := closedSize.Mul(fillPrice.Sub(p.EntryPrice))
	if p.Side() == Sell {
		pnl = pnl.Neg()
	}
	remainder := fillSize.Sub(posAbs)
	newSize := remainder
	if side == Sell {
		newSize = remainder.Neg()
	}
	return Position{Key: p.Key, Size: newSize, EntryPrice: fillPrice, RealizedPnl: p.RealizedPnl.Add(pnl)}, pnl
}

func sameSign(a, b decimal.Decimal) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	return a.IsPositive() == b.IsPositive()
}
