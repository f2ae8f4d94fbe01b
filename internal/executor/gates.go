// Package executor implements the executor's own admission pipeline
// (§4.5), the three-tier batch scheduler (§4.6), inflight/budget wiring
// (§4.7), and the 100ms tick loop that is the only task allowed to
// sign, send, or mutate the pending-request table (§4.10). It is
// grounded on the teacher's exchange.RateLimiter token-bucket shape for
// ActionBudget accounting and risk.Manager's atomic-counter style for
// InflightTracker, generalized to a structured Rejected/Skipped verdict
// per gate instead of a single kill signal.
package executor

import (
	"github.com/shopspring/decimal"

	"hyperdrift-taker/internal/core/errors"
	"hyperdrift-taker/internal/position"
	"hyperdrift-taker/pkg/domain"
)

// Limits bundles the portfolio-level admission thresholds gates 3-5 check.
type Limits struct {
	MaxNotionalPerMarket   decimal.Decimal
	MaxNotionalTotal       decimal.Decimal
	MaxConcurrentPositions int
}

// MarkPriceLookup resolves the mark price used for notional accounting.
// Kept as a narrow interface (rather than a direct internal/marketstate
// dependency) so gate tests can supply a fixed price table.
type MarkPriceLookup interface {
	MarkPrice(key domain.MarketKey) (decimal.Decimal, bool)
}

// Candidate is the proposed order the admission pipeline evaluates,
// built from a dislocation signal already rounded by MarketSpec.
type Candidate struct {
	Key   domain.MarketKey
	Side  domain.Side
	Price domain.Price
	Size  domain.Size
}

// Notional returns the candidate's notional value at its own limit price.
func (c Candidate) Notional() decimal.Decimal {
	return c.Size.Decimal.Mul(c.Price.Decimal)
}

// Gates runs the seven executor-owned admission checks in the exact
// order spec.md §4.5 requires. Gate 2 (READY-TRADING) is the caller's
// contract — evaluated by the bot layer before Admit is ever invoked —
// and never appears here.
type Gates struct {
	limits    Limits
	hardStop  *domain.HardStopLatch
	budget    *domain.ActionBudget
	positions *position.Handle
	marks     MarkPriceLookup
}

// NewGates builds the admission pipeline over its shared, already-live
// dependencies (the latch, budget, and position handle are singletons
// shared with the rest of the executor and the risk monitor).
func NewGates(limits Limits, hardStop *domain.HardStopLatch, budget *domain.ActionBudget, positions *position.Handle, marks MarkPriceLookup) *Gates {
	return &Gates{limits: limits, hardStop: hardStop, budget: budget, positions: positions, marks: marks}
}

// Admit evaluates gates 1, 3-8 against cand. On success it has already
// reserved the market (gate 7) and consumed one action-budget slot
// (gate 8), and returns the cloid the caller must register via
// position.Handle.FinalizeOrder after enqueueing the order; reserving
// the market ahead of cloid generation (rather than after, as a literal
// reading of "on all gates passing a fresh cloid is generated" would
// suggest) is what lets gate 7's insert-if-absent entry carry a value
// at all — see position.Handle.ReserveMarket.
//
// On failure the error's Kind distinguishes a hard Rejected (the caller
// should log at warn/error and back off) from a benign Skipped (the
// caller just tries the next signal): KindHardStopActive,
// KindMarketDataUnavailable, and KindExecutionRejected are Rejected;
// KindGateBlocked and KindRateLimitExceeded are Skipped.
func (g *Gates) Admit(cand Candidate) (domain.ClientOrderId, error) {
	if g.hardStop.IsTripped() {
		return domain.ClientOrderId{}, errors.New(errors.KindHardStopActive, "hard stop latch is tripped").
			WithContext("reason", g.hardStop.Reason())
	}

	if err := g.checkMaxPositionPerMarket(cand); err != nil {
		return domain.ClientOrderId{}, err
	}
	if err := g.checkMaxPositionTotal(cand); err != nil {
		return domain.ClientOrderId{}, err
	}
	if err := g.checkMaxConcurrentPositions(cand); err != nil {
		return domain.ClientOrderId{}, err
	}
	if pos, ok := g.positions.Position(cand.Key); ok && !pos.IsFlat() {
		return domain.ClientOrderId{}, errors.New(errors.KindGateBlocked, "already has a position in this market").
			WithContext("market", cand.Key.String())
	}

	if !g.positions.ReserveMarket(cand.Key) {
		return domain.ClientOrderId{}, errors.New(errors.KindGateBlocked, "pending order already exists for market").
			WithContext("market", cand.Key.String())
	}

	if !g.budget.TryConsume() {
		g.positions.UnmarkPendingMarket(cand.Key)
		return domain.ClientOrderId{}, errors.New(errors.KindRateLimitExceeded, "action budget exhausted").
			WithContext("market", cand.Key.String())
	}

	return domain.NewClientOrderId(), nil
}

// Release undoes a reservation Admit made without ever reaching a
// scheduler enqueue (e.g. the scheduler reports QueueFull downstream).
// The already-consumed budget slot is not refunded — spurious denial
// under this rare race is acceptable, matching §4.7's tolerance for it.
func (g *Gates) Release(key domain.MarketKey) {
	g.positions.UnmarkPendingMarket(key)
}

func (g *Gates) checkMaxPositionPerMarket(cand Candidate) error {
	if g.limits.MaxNotionalPerMarket.IsZero() {
		return nil
	}
	mark, ok := g.marks.MarkPrice(cand.Key)
	if !ok {
		return errors.New(errors.KindMarketDataUnavailable, "no mark price for market").
			WithContext("market", cand.Key.String())
	}

	var current decimal.Decimal
	if pos, ok := g.positions.Position(cand.Key); ok {
		current = pos.Size.Abs().Mul(mark)
	}
	var pending decimal.Decimal
	for _, o := range g.positions.AllPendingOrders() {
		if o.Key == cand.Key && !o.ReduceOnly {
			pending = pending.Add(o.Size.Decimal.Mul(mark))
		}
	}

	total := current.Add(pending).Add(cand.Notional())
	if total.GreaterThan(g.limits.MaxNotionalPerMarket) {
		return errors.New(errors.KindExecutionRejected, "max notional per market exceeded").
			WithContext("market", cand.Key.String()).
			WithContext("notional", total.String())
	}
	return nil
}

func (g *Gates) checkMaxPositionTotal(cand Candidate) error {
	if g.limits.MaxNotionalTotal.IsZero() {
		return nil
	}

	total := decimal.Zero
	marks := make(map[domain.MarketKey]decimal.Decimal)
	markFor := func(key domain.MarketKey) (decimal.Decimal, bool) {
		if m, ok := marks[key]; ok {
			return m, true
		}
		m, ok := g.marks.MarkPrice(key)
		if ok {
			marks[key] = m
		}
		return m, ok
	}

	for key, pos := range g.positions.AllPositions() {
		if pos.IsFlat() {
			continue
		}
		mark, ok := markFor(key)
		if !ok {
			return errors.New(errors.KindMarketDataUnavailable, "no mark price for market with open position").
				WithContext("market", key.String())
		}
		total = total.Add(pos.Size.Abs().Mul(mark))
	}
	for _, o := range g.positions.AllPendingOrders() {
		if o.ReduceOnly {
			continue
		}
		mark, ok := markFor(o.Key)
		if !ok {
			return errors.New(errors.KindMarketDataUnavailable, "no mark price for market with pending order").
				WithContext("market", o.Key.String())
		}
		total = total.Add(o.Size.Decimal.Mul(mark))
	}

	total = total.Add(cand.Notional())
	if total.GreaterThan(g.limits.MaxNotionalTotal) {
		return errors.New(errors.KindExecutionRejected, "max total notional exceeded").
			WithContext("notional", total.String())
	}
	return nil
}

func (g *Gates) checkMaxConcurrentPositions(cand Candidate) error {
	if g.limits.MaxConcurrentPositions <= 0 {
		return nil
	}
	count := 0
	for _, pos := range g.positions.AllPositions() {
		if !pos.IsFlat() {
			count++
		}
	}
	if count >= g.limits.MaxConcurrentPositions {
		return errors.New(errors.KindExecutionRejected, "max concurrent positions reached").
			WithContext("count", count)
	}
	return nil
}
