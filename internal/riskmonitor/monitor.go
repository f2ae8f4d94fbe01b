// Package riskmonitor implements the always-on hard-stop trip logic of
// §4.13: a single task consuming a stream of execution events and tripping
// the shared hard-stop latch the first time any configured threshold is
// breached. It holds no state the executor or exit monitors read directly —
// the latch is the only shared surface, checked by those packages on their
// own admission paths.
package riskmonitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/internal/config"
	"hyperdrift-taker/pkg/domain"
)

// HardStop is satisfied by *domain.HardStopLatch.
type HardStop interface {
	Trip(reason string) bool
	IsTripped() bool
}

// Monitor consumes Events off a single channel and evaluates the five
// trip conditions of §4.13. All mutable state below is only ever touched
// from the Run goroutine; Report is the sole cross-goroutine entry point.
type Monitor struct {
	cfg      config.RiskMonConfig
	hardStop HardStop
	logger   *slog.Logger

	eventCh chan Event

	mu sync.RWMutex

	cumulativeLoss      decimal.Decimal
	consecutiveFailures int
	slippageStreak      int
	flattenFailures     []time.Time
	rejections          []time.Time
}

func NewMonitor(cfg config.RiskMonConfig, hardStop HardStop, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:      cfg,
		hardStop: hardStop,
		logger:   logger.With("component", "risk_monitor"),
		eventCh:  make(chan Event, 256),
	}
}

// Report enqueues an event for evaluation. Mirrors the teacher's
// non-blocking report pattern: a full channel means the monitor is
// falling behind, which is itself worth a warning rather than a stall
// on the caller's hot path.
func (m *Monitor) Report(e Event) {
	select {
	case m.eventCh <- e:
	default:
		m.logger.Warn("risk event dropped, monitor channel full", "kind", e.Kind)
	}
}

func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-m.eventCh:
			m.process(e)
		}
	}
}

func (m *Monitor) process(e Event) {
	if m.hardStop.IsTripped() {
		return
	}
	switch e.Kind {
	case OrderFilled:
		m.onFilled(e)
	case OrderRejected:
		m.onRejected(e)
	case FlattenFailed:
		m.onFlattenFailed(e)
	case SlippageMeasured:
		m.onSlippage(e)
	}
}

func (m *Monitor) onFilled(e Event) {
	m.mu.Lock()
	m.consecutiveFailures = 0
	if e.RealizedPnl.IsNegative() {
		m.cumulativeLoss = m.cumulativeLoss.Add(e.RealizedPnl.Abs())
	}
	loss := m.cumulativeLoss
	m.mu.Unlock()

	if m.cfg.MaxCumulativeLoss > 0 && loss.GreaterThanOrEqual(decimal.NewFromFloat(m.cfg.MaxCumulativeLoss)) {
		m.trip("cumulative realized loss exceeded max_cumulative_loss", "loss", loss.String())
	}
}

func (m *Monitor) onRejected(e Event) {
	m.mu.Lock()
	m.consecutiveFailures++
	failures := m.consecutiveFailures
	m.rejections = pruneWindow(append(m.rejections, e.Ts), e.Ts, time.Hour)
	rate := len(m.rejections)
	m.mu.Unlock()

	if m.cfg.MaxConsecutiveFailures > 0 && failures >= m.cfg.MaxConsecutiveFailures {
		m.trip("consecutive order rejections exceeded max_consecutive_failures", "failures", failures)
		return
	}
	if m.cfg.MaxRejectionRatePerHour > 0 && float64(rate) > m.cfg.MaxRejectionRatePerHour {
		m.trip("rejection rate exceeded max_rejection_rate_per_hour", "rejections_last_hour", rate)
	}
}

func (m *Monitor) onFlattenFailed(e Event) {
	window := m.cfg.FlattenFailureWindow
	if window <= 0 {
		window = time.Minute
	}
	m.mu.Lock()
	m.flattenFailures = pruneWindow(append(m.flattenFailures, e.Ts), e.Ts, window)
	count := len(m.flattenFailures)
	m.mu.Unlock()

	if m.cfg.MaxFlattenFailures > 0 && count >= m.cfg.MaxFlattenFailures {
		m.trip("flatten failures exceeded max_flatten_failures within window", "count", count, "window", window)
	}
}

func (m *Monitor) onSlippage(e Event) {
	threshold := decimal.NewFromFloat(m.cfg.MaxSlippageBps)
	m.mu.Lock()
	if m.cfg.MaxSlippageBps > 0 && e.SlippageBps.Abs().GreaterThan(threshold) {
		m.slippageStreak++
	} else {
		m.slippageStreak = 0
	}
	streak := m.slippageStreak
	m.mu.Unlock()

	if m.cfg.SlippageConsecutiveFills > 0 && streak >= m.cfg.SlippageConsecutiveFills {
		m.trip("slippage exceeded max_slippage_bps for slippage_consecutive_fills in a row", "streak", streak)
	}
}

func (m *Monitor) trip(reason string, args ...any) {
	if m.hardStop.Trip(reason) {
		m.logger.Error(reason, args...)
	}
}

func pruneWindow(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

var _ HardStop = (*domain.HardStopLatch)(nil)
