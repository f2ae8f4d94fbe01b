package exits

import (
	"context"
	"log/slog"
	"time"

	"hyperdrift-taker/pkg/domain"
)

// PositionSource is satisfied by *position.Handle.
type PositionSource interface {
	AllPositions() map[domain.MarketKey]domain.Position
	AllPendingOrders() []domain.PendingOrder
}

// SnapshotSource is satisfied by *marketstate.Aggregator.
type SnapshotSource interface {
	GetSnapshot(key domain.MarketKey, now time.Time) (domain.Snapshot, bool)
}

// ReduceOnlyQueue is satisfied by *executor.Scheduler.
type ReduceOnlyQueue interface {
	EnqueueReduceOnly(o domain.PendingOrder) bool
}

// TimeStopConfig bundles the failsafe monitor's tunables (§4.12).
type TimeStopConfig struct {
	CheckInterval       time.Duration
	Threshold           time.Duration
	SlippageBps         float64
	ReduceOnlyTimeout   time.Duration
}

// TimeStopMonitor is the failsafe exit: any position held longer than
// Threshold is flattened regardless of price, and any reduce-only order
// that has sat unfilled longer than ReduceOnlyTimeout raises a
// structured alert so an operator can intervene. Grounded on
// internal/strategy/maker.go's Run ticker loop, generalized from one
// market's quote refresh to a sweep over every open position.
type TimeStopMonitor struct {
	positions PositionSource
	snapshots SnapshotSource
	queue     ReduceOnlyQueue
	builder   *FlattenOrderBuilder
	cfg       TimeStopConfig
	logger    *slog.Logger
}

// NewTimeStopMonitor builds a TimeStopMonitor.
func NewTimeStopMonitor(positions PositionSource, snapshots SnapshotSource, queue ReduceOnlyQueue, builder *FlattenOrderBuilder, cfg TimeStopConfig, logger *slog.Logger) *TimeStopMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeStopMonitor{
		positions: positions,
		snapshots: snapshots,
		queue:     queue,
		builder:   builder,
		cfg:       cfg,
		logger:    logger.With("component", "time_stop_monitor"),
	}
}

// Run drives the sweep on cfg.CheckInterval until ctx is cancelled.
func (m *TimeStopMonitor) Run(ctx context.Context) {
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

func (m *TimeStopMonitor) sweep(now time.Time) {
	for _, pos := range m.positions.AllPositions() {
		if pos.IsFlat() {
			continue
		}
		if now.Sub(pos.OpenedAt) <= m.cfg.Threshold {
			continue
		}
		snap, ok := m.snapshots.GetSnapshot(pos.Key, now)
		if !ok {
			continue
		}
		order, ok := m.builder.Build(pos, snap, decimal64(m.cfg.SlippageBps), now)
		if !ok {
			continue
		}
		if m.queue.EnqueueReduceOnly(order) {
			m.logger.Warn("time-stop flatten enqueued", "market", pos.Key.String(), "held_for", now.Sub(pos.OpenedAt))
		}
	}

	for _, o := range m.positions.AllPendingOrders() {
		if !o.ReduceOnly {
			continue
		}
		if now.Sub(o.SubmittedAt) > m.cfg.ReduceOnlyTimeout {
			m.logger.Error("reduce-only order stuck past timeout", "market", o.Key.String(), "cloid", o.Cloid.String(), "age", now.Sub(o.SubmittedAt))
		}
	}
}
