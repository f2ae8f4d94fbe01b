// Package position implements the position tracker: a single-writer
// actor over positions_data plus a handle exposing lock-free caches the
// executor's gate path reads and writes without a channel round-trip
// (§4.11). Grounded on the teacher's strategy.Inventory for the
// average-cost/realize-PnL fill math, promoted from a mutex-guarded
// struct to an actor because the snapshot-replay buffering §4.11
// requires has no synchronous-mutex equivalent.
package position

import (
	"context"
	"log/slog"
	"time"

	"hyperdrift-taker/pkg/domain"
)

// Tracker owns the actor goroutine and the shared Handle.
type Tracker struct {
	handle *Handle
	logger *slog.Logger
}

// New builds a Tracker. Call Run in its own goroutine to start the actor.
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		handle: newHandle(),
		logger: logger.With("component", "position_tracker"),
	}
}

// Handle returns the lock-free read/write surface for the executor.
func (t *Tracker) Handle() *Handle { return t.handle }

// Run is the actor's message loop. It buffers OrderUpdate/Fill messages
// received between SnapshotStart and SnapshotEnd and replays them in
// arrival order once the snapshot window closes, so a REST-seeded
// baseline can be reconciled with the concurrent WS stream without loss.
func (t *Tracker) Run(ctx context.Context) {
	var buffering bool
	var buffered []Message

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.handle.mailbox:
			switch msg.Kind {
			case SnapshotStart:
				buffering = true
				buffered = buffered[:0]
			case SnapshotEnd:
				buffering = false
				for _, m := range buffered {
					t.apply(m)
				}
				buffered = nil
			case Shutdown:
				return
			default:
				if buffering {
					buffered = append(buffered, msg)
				} else {
					t.apply(msg)
				}
			}
		}
	}
}

func (t *Tracker) apply(msg Message) {
	switch msg.Kind {
	case RegisterOrder:
		// Idempotent: the handle already wrote this cache entry on the
		// fast path (TryRegisterOrder); the actor-only slow path never
		// touches the handle caches, so writing here unconditionally
		// covers both without double-booking a market.
		t.handle.pendingOrders.Store(msg.Order.Cloid, msg.Order)
		t.handle.pendingMarkets.LoadOrStore(msg.Order.Key, msg.Order.Cloid)
	case UnregisterOrder:
		t.handle.pendingOrders.Delete(msg.Cloid)
		t.handle.pendingMarkets.Delete(msg.Market)
	case OrderUpdate:
		if msg.Status.IsTerminal() {
			t.handle.pendingOrders.Delete(msg.Cloid)
			t.handle.pendingMarkets.Delete(msg.Market)
		}
	case Fill:
		t.applyFill(msg)
	}
}

func (t *Tracker) applyFill(msg Message) {
	current, _ := t.handle.Position(msg.Market)
	if current.Key == (domain.MarketKey{}) {
		current.Key = msg.Market
	}
	wasFlat := current.IsFlat()

	updated, _ := current.ApplyFill(msg.FillSide, msg.FillSize, msg.FillPrice)

	switch {
	case updated.IsFlat():
		updated.OpenedAt = time.Time{}
	case wasFlat:
		fillTime := msg.Ts
		if fillTime.IsZero() {
			fillTime = time.Now()
		}
		updated.OpenedAt = fillTime
	default:
		updated.OpenedAt = current.OpenedAt
	}

	t.handle.positions.Store(msg.Market, updated)
}

// RegisterOrderActorOnly is the blocking slow path used when the
// mailbox is momentarily full: it does not touch the handle caches
// itself (the actor writes them on receipt), so the caller must not
// also call TryRegisterOrder for the same order.
func (t *Tracker) RegisterOrderActorOnly(ctx context.Context, order domain.PendingOrder) error {
	select {
	case t.handle.mailbox <- Message{Kind: RegisterOrder, Order: order}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SeedPosition installs a starting position fetched from the REST
// clearinghouse snapshot. Callers must only use this before Run starts
// consuming the mailbox; it writes the handle cache directly rather
// than going through the actor loop, since there is no concurrent
// writer yet to race with at that point in startup.
func (t *Tracker) SeedPosition(pos domain.Position) {
	if !pos.IsFlat() {
		pos.OpenedAt = time.Now()
	}
	t.handle.positions.Store(pos.Key, pos)
}
