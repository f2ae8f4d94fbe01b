// Package detector implements the mark/oracle dislocation detector
// (§4.4): it watches a market snapshot for the exchange's own best bid
// or ask crossing the oracle price by more than the configured fee and
// slippage budget, and sizes a suggested order against available
// top-of-book liquidity.
package detector

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

var (
	tenThousand = decimal.NewFromInt(10000)
	one         = decimal.NewFromInt(1)
	zero        = decimal.Zero
)

// MarketParams are the per-market tunables the detector needs, sourced
// from config.MarketConfig.
type MarketParams struct {
	MaxNotional           decimal.Decimal
	SizeAlpha             decimal.Decimal
	EdgeBpsMin            decimal.Decimal
	MinBookNotional       decimal.Decimal
	NormalBookNotional    decimal.Decimal
	OracleDirectionFilter bool
}

// Signal is a suggested action derived from a crossed book, handed off
// to the executor's gate pipeline unevaluated.
type Signal struct {
	Market        domain.MarketKey
	Side          domain.Side
	SuggestedSize domain.Size
	LimitPrice    domain.Price
	EdgeBpsRaw    decimal.Decimal
	EdgeBpsNet    decimal.Decimal
	SnapshotTS    int64
}

// OracleTrend summarizes recent oracle movement direction for the
// optional oracle-direction filter.
type OracleTrend struct {
	Rising  bool
	Falling bool
}

// Detector evaluates one market snapshot at a time; it holds no
// per-market state of its own (oracle trend is supplied by the caller,
// tracked by internal/core's trendTracker).
type Detector struct {
	logger   *slog.Logger
	slippage decimal.Decimal // default_slippage_bps, a flat conservative slip allowance
}

// New builds a Detector with a default slippage allowance in bps.
func New(defaultSlippageBps decimal.Decimal, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		logger:   logger.With("component", "detector"),
		slippage: defaultSlippageBps,
	}
}

// Evaluate inspects snap for a crossing signal against oracle, applying
// params' sizing and edge-floor rules. Returns false if no signal
// fires — a skip is the expected common case, not an error.
func (d *Detector) Evaluate(snap domain.Snapshot, spec domain.MarketSpec, params MarketParams, feeBps decimal.Decimal, trend OracleTrend, snapshotTS int64) (Signal, bool) {
	if !snap.HasBbo || !snap.HasOracle {
		return Signal{}, false
	}
	oracle := snap.Oracle.OraclePrice.Decimal
	if oracle.IsZero() {
		return Signal{}, false
	}

	if sig, ok := d.evaluateSide(snap, spec, params, feeBps, trend, snapshotTS, domain.Buy); ok {
		return sig, true
	}
	if sig, ok := d.evaluateSide(snap, spec, params, feeBps, trend, snapshotTS, domain.Sell); ok {
		return sig, true
	}
	return Signal{}, false
}

func (d *Detector) evaluateSide(snap domain.Snapshot, spec domain.MarketSpec, params MarketParams, feeBps decimal.Decimal, trend OracleTrend, snapshotTS int64, side domain.Side) (Signal, bool) {
	isBuy := side == domain.Buy
	oracle := snap.Oracle.OraclePrice.Decimal

	var sidePx decimal.Decimal
	var sideSz decimal.Decimal
	if isBuy {
		sidePx = snap.Bbo.Ask.Decimal
		sideSz = snap.Bbo.AskSize.Decimal
	} else {
		sidePx = snap.Bbo.Bid.Decimal
		sideSz = snap.Bbo.BidSize.Decimal
	}
	if sidePx.IsZero() {
		return Signal{}, false
	}

	if params.OracleDirectionFilter {
		if isBuy && !trend.Rising {
			return Signal{}, false
		}
		if !isBuy && !trend.Falling {
			return Signal{}, false
		}
	}

	var rawEdgeBps decimal.Decimal
	if isBuy {
		rawEdgeBps = oracle.Sub(sidePx).Div(oracle).Mul(tenThousand)
	} else {
		rawEdgeBps = sidePx.Sub(oracle).Div(oracle).Mul(tenThousand)
	}
	if rawEdgeBps.Sign() <= 0 {
		return Signal{}, false
	}

	netEdgeBps := rawEdgeBps.Sub(feeBps).Sub(d.slippage)
	if netEdgeBps.LessThan(params.EdgeBpsMin) {
		return Signal{}, false
	}

	bookNotional := sideSz.Mul(sidePx)
	denom := params.NormalBookNotional.Sub(params.MinBookNotional)
	var factor decimal.Decimal
	if denom.Sign() <= 0 {
		factor = zero
	} else {
		factor = bookNotional.Sub(params.MinBookNotional).Div(denom)
		factor = clampDecimal(factor, zero, one)
	}
	if factor.IsZero() {
		return Signal{}, false
	}

	mid := snap.Bbo.Mid().Decimal
	if mid.IsZero() {
		return Signal{}, false
	}

	byAlpha := params.SizeAlpha.Mul(factor).Mul(sideSz)
	byNotionalCap := params.MaxNotional.Div(mid)
	size := decimal.Min(byAlpha, byNotionalCap)

	rounded := domain.NewSize(size).Floor(spec)
	if rounded.IsZero() {
		return Signal{}, false
	}

	limitPrice := domain.NewPrice(sidePx).RoundAwayFromMid(isBuy, spec)

	return Signal{
		Market:        snap.Key,
		Side:          side,
		SuggestedSize: rounded,
		LimitPrice:    limitPrice,
		EdgeBpsRaw:    rawEdgeBps,
		EdgeBpsNet:    netEdgeBps,
		SnapshotTS:    snapshotTS,
	}, true
}

func clampDecimal(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
