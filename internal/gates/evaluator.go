package gates

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

// Thresholds bundles the configured trigger points for all eight gates.
type Thresholds struct {
	MaxBboAge        time.Duration
	MaxCtxAge        time.Duration
	MaxDivergenceBps decimal.Decimal
	SpreadShockK     decimal.Decimal
	SpreadEwmaAlpha  decimal.Decimal
	MaxOiFraction    decimal.Decimal
}

// Input bundles everything one evaluation call needs. ParamChanged and
// Halted are supplied by the caller (internal/core derives both from
// periodic REST discovery); the evaluator holds no opinion on how
// those are derived.
type Input struct {
	Now           time.Time
	Snapshot      domain.Snapshot
	BboRegression bool
	CtxRegression bool
	Spec          domain.MarketSpec
	ParamChanged  bool
	Halted        bool
	OpenInterest  decimal.Decimal
	OiCap         decimal.Decimal
	IsHolding     bool
}

// Evaluator runs the eight-gate pipeline for one market. One Evaluator
// instance is shared across all configured markets; each market's EWMA
// state is tracked independently.
type Evaluator struct {
	thresholds Thresholds
	logger     *slog.Logger

	mu          sync.Mutex
	spreadEwmas map[domain.MarketKey]*ewma
	lastBlocked map[domain.MarketKey]bool // for edge-triggered logging
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(thresholds Thresholds, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		thresholds:  thresholds,
		logger:      logger.With("component", "gates"),
		spreadEwmas: make(map[domain.MarketKey]*ewma),
		lastBlocked: make(map[domain.MarketKey]bool),
	}
}

// Evaluate runs gates 1-8 in order against in. The SpreadShock EWMA for
// this market is updated only if gates 1-4 did not block, preventing
// stale data from poisoning it.
func (e *Evaluator) Evaluate(key domain.MarketKey, in Input) GateVerdict {
	verdict := e.evaluateOrdered(key, in)
	e.logTransition(key, verdict)
	return verdict
}

func (e *Evaluator) evaluateOrdered(key domain.MarketKey, in Input) GateVerdict {
	// Gate 1: BboUpdate
	if v := e.gateBboUpdate(in); v.Kind == Block {
		return v
	}
	// Gate 2: CtxUpdate
	if v := e.gateCtxUpdate(in); v.Kind == Block {
		return v
	}
	// Gate 3: TimeRegression
	if v := e.gateTimeRegression(in); v.Kind != Pass {
		return v
	}
	// Gate 4: MarkMidDivergence
	gate4 := e.gateMarkMidDivergence(in)
	if gate4.Kind == Block {
		return gate4
	}

	// Gates 1-4 did not block: safe to update the spread EWMA.
	spread, haveSpread := e.currentSpread(in)
	var gate5 GateVerdict
	if haveSpread {
		gate5 = e.gateSpreadShock(key, in, spread)
	} else {
		gate5 = passVerdict()
	}
	if gate5.Kind == Block {
		return gate5
	}

	// Gate 6: OiCap
	if v := e.gateOiCap(in); v.Kind == Block {
		return v
	}
	// Gate 7: ParamChange
	if v := e.gateParamChange(in); v.Kind != Pass {
		return v
	}
	// Gate 8: Halt
	if v := e.gateHalt(in); v.Kind != Pass {
		return v
	}

	// Combine any ReduceSize verdicts from gates 4 and 5, taking the
	// more conservative (smaller) factor.
	if gate4.Kind == ReduceSize && gate5.Kind == ReduceSize {
		if gate4.Factor.LessThan(gate5.Factor) {
			return gate4
		}
		return gate5
	}
	if gate4.Kind == ReduceSize {
		return gate4
	}
	if gate5.Kind == ReduceSize {
		return gate5
	}
	return passVerdict()
}

func (e *Evaluator) gateBboUpdate(in Input) GateVerdict {
	if !in.Snapshot.HasBbo {
		return blockVerdict("BboUpdate", "no bbo observed yet")
	}
	age := in.Now.Sub(in.Snapshot.Bbo.ReceivedAt)
	if age > e.thresholds.MaxBboAge {
		return blockVerdict("BboUpdate", "bbo stale")
	}
	return passVerdict()
}

func (e *Evaluator) gateCtxUpdate(in Input) GateVerdict {
	if !in.Snapshot.HasOracle {
		return blockVerdict("CtxUpdate", "no ctx observed yet")
	}
	age := in.Now.Sub(in.Snapshot.Oracle.ReceivedAt)
	if age > e.thresholds.MaxCtxAge {
		return blockVerdict("CtxUpdate", "ctx stale")
	}
	return passVerdict()
}

func (e *Evaluator) gateTimeRegression(in Input) GateVerdict {
	if in.BboRegression || in.CtxRegression {
		if in.IsHolding {
			return GateVerdict{Kind: ReduceSize, Gate: "TimeRegression", Reason: "receipt timestamp regressed", Factor: decimal.NewFromFloat(0.2), StopMarket: true}
		}
		return GateVerdict{Kind: Block, Gate: "TimeRegression", Reason: "receipt timestamp regressed", RequireReconnect: true}
	}
	return passVerdict()
}

func (e *Evaluator) gateMarkMidDivergence(in Input) GateVerdict {
	mid := in.Snapshot.Bbo.Mid()
	if mid.Decimal.IsZero() {
		return blockVerdict("MarkMidDivergence", "mid price is zero")
	}
	markPx := in.Snapshot.Oracle.MarkPrice.Decimal
	divergence := markPx.Sub(mid.Decimal).Abs().Div(mid.Decimal).Mul(decimal.NewFromInt(10000))
	if divergence.GreaterThan(e.thresholds.MaxDivergenceBps) {
		if in.IsHolding {
			return reduceVerdict("MarkMidDivergence", "mark diverges from mid", decimal.NewFromFloat(0.2))
		}
		return blockVerdict("MarkMidDivergence", "mark diverges from mid")
	}
	return passVerdict()
}

func (e *Evaluator) currentSpread(in Input) (decimal.Decimal, bool) {
	if !in.Snapshot.HasBbo {
		return decimal.Zero, false
	}
	return in.Snapshot.Bbo.Ask.Decimal.Sub(in.Snapshot.Bbo.Bid.Decimal), true
}

func (e *Evaluator) gateSpreadShock(key domain.MarketKey, in Input, spread decimal.Decimal) GateVerdict {
	e.mu.Lock()
	ew, ok := e.spreadEwmas[key]
	if !ok {
		ew = newEwma(e.thresholds.SpreadEwmaAlpha)
		e.spreadEwmas[key] = ew
	}
	prior, initialized := ew.current()
	ew.update(spread)
	e.mu.Unlock()

	if !initialized || prior.IsZero() {
		return passVerdict()
	}

	k := e.thresholds.SpreadShockK
	twoK := k.Mul(decimal.NewFromInt(2))
	threshold := k.Mul(prior)
	hardThreshold := twoK.Mul(prior)

	if spread.GreaterThan(hardThreshold) {
		return blockVerdict("SpreadShock", "spread exceeds 2k*ewma")
	}
	if spread.GreaterThan(threshold) {
		return reduceVerdict("SpreadShock", "spread exceeds k*ewma", decimal.NewFromFloat(0.2))
	}
	return passVerdict()
}

func (e *Evaluator) gateOiCap(in Input) GateVerdict {
	if in.OiCap.IsZero() {
		return passVerdict()
	}
	limit := e.thresholds.MaxOiFraction.Mul(in.OiCap)
	if in.OpenInterest.GreaterThanOrEqual(limit) {
		return blockVerdict("OiCap", "open interest at cap")
	}
	return passVerdict()
}

func (e *Evaluator) gateParamChange(in Input) GateVerdict {
	if !in.ParamChanged {
		return passVerdict()
	}
	if in.IsHolding {
		return GateVerdict{Kind: ReduceSize, Gate: "ParamChange", Reason: "market spec changed", Factor: decimal.NewFromFloat(0.2), StopMarket: true}
	}
	return GateVerdict{Kind: Block, Gate: "ParamChange", Reason: "market spec changed", CancelAll: true}
}

func (e *Evaluator) gateHalt(in Input) GateVerdict {
	if !in.Halted && in.Spec.IsActive {
		return passVerdict()
	}
	if in.IsHolding {
		return GateVerdict{Kind: ReduceSize, Gate: "Halt", Reason: "market halted", Factor: decimal.NewFromFloat(0.2), StopMarket: true}
	}
	return GateVerdict{Kind: Block, Gate: "Halt", Reason: "market halted", CancelAll: true}
}

// logTransition emits a warn line only when this evaluation's
// block/pass state differs from the last one recorded for this market,
// preventing log storms on a persistently-blocked market.
func (e *Evaluator) logTransition(key domain.MarketKey, v GateVerdict) {
	blocked := v.Kind == Block
	e.mu.Lock()
	prior, known := e.lastBlocked[key]
	e.lastBlocked[key] = blocked
	e.mu.Unlock()

	if known && prior == blocked {
		return
	}
	if blocked {
		e.logger.Warn("gate transitioned to block", "market", key.String(), "gate", v.Gate, "reason", v.Reason)
	} else {
		e.logger.Warn("gate transitioned to pass", "market", key.String())
	}
}
