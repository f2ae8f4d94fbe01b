package exits

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

// MarkRegressionConfig bundles the profit-taking monitor's tunables (§4.12).
type MarkRegressionConfig struct {
	CheckInterval   time.Duration
	MinHoldingTime  time.Duration
	ExitThresholdBps float64
}

// MarkRegressionMonitor exits a position once the book regresses back
// through the oracle price by less than ExitThresholdBps, the signal
// that the dislocation which opened the position has closed. A long
// exits once best_bid climbs to oracle·(1−threshold); a short exits
// once best_ask falls to oracle·(1+threshold). Grounded on the same
// internal/strategy/maker.go ticker-loop shape as TimeStopMonitor; the
// scheduler's per-market reduce-only dedup (already built in
// internal/executor) is what keeps this monitor and TimeStopMonitor
// from ever double-submitting a flatten for the same market.
type MarkRegressionMonitor struct {
	positions PositionSource
	snapshots SnapshotSource
	queue     ReduceOnlyQueue
	builder   *FlattenOrderBuilder
	cfg       MarkRegressionConfig
	slippageBps decimal.Decimal
	logger    *slog.Logger
}

// NewMarkRegressionMonitor builds a MarkRegressionMonitor. slippageBps
// prices the flatten order the same way the time-stop monitor does —
// the trigger condition differs between the two monitors, the order
// construction does not.
func NewMarkRegressionMonitor(positions PositionSource, snapshots SnapshotSource, queue ReduceOnlyQueue, builder *FlattenOrderBuilder, cfg MarkRegressionConfig, slippageBps float64, logger *slog.Logger) *MarkRegressionMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkRegressionMonitor{
		positions:   positions,
		snapshots:   snapshots,
		queue:       queue,
		builder:     builder,
		cfg:         cfg,
		slippageBps: decimal64(slippageBps),
		logger:      logger.With("component", "mark_regression_monitor"),
	}
}

// Run drives the sweep on cfg.CheckInterval until ctx is cancelled.
func (m *MarkRegressionMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *MarkRegressionMonitor) sweep(now time.Time) {
	threshold := decimal64(m.cfg.ExitThresholdBps).Div(tenThousand)

	for _, pos := range m.positions.AllPositions() {
		if pos.IsFlat() {
			continue
		}
		if now.Sub(pos.OpenedAt) < m.cfg.MinHoldingTime {
			continue
		}
		snap, ok := m.snapshots.GetSnapshot(pos.Key, now)
		if !ok || !snap.HasBbo || !snap.HasOracle {
			continue
		}
		oracle := snap.Oracle.OraclePrice.Decimal
		if oracle.IsZero() {
			continue
		}

		triggered := false
		if pos.Side() == domain.Buy {
			target := oracle.Mul(one.Sub(threshold))
			triggered = snap.Bbo.Bid.Decimal.GreaterThanOrEqual(target)
		} else {
			target := oracle.Mul(one.Add(threshold))
			triggered = snap.Bbo.Ask.Decimal.LessThanOrEqual(target)
		}
		if !triggered {
			continue
		}

		order, ok := m.builder.Build(pos, snap, m.slippageBps, now)
		if !ok {
			continue
		}
		if m.queue.EnqueueReduceOnly(order) {
			m.logger.Info("mark-regression flatten enqueued", "market", pos.Key.String(), "oracle_px", oracle.String())
		}
	}
}
