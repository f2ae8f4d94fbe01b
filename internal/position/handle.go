package position

import (
	"sync"

	"hyperdrift-taker/internal/core/errors"
	"hyperdrift-taker/pkg/domain"
)

const mailboxCapacity = 256

// Handle is the concurrent-safe read/write surface the executor's gate
// path uses without a channel round-trip (§4.11). It owns three
// lock-free caches: positions_data (written by the actor, and directly
// by Tracker.SeedPosition), pending_orders_data and
// pending_markets_cache (written by the handle, via insert-if-absent
// semantics for the market cache, and by the actor when it applies
// order registration, unregistration and terminal order updates).
type Handle struct {
	positions      sync.Map // domain.MarketKey -> domain.Position
	pendingOrders  sync.Map // domain.ClientOrderId -> domain.PendingOrder
	pendingMarkets sync.Map // domain.MarketKey -> domain.ClientOrderId

	mailbox chan Message
}

func newHandle() *Handle {
	return &Handle{mailbox: make(chan Message, mailboxCapacity)}
}

// Position returns the current cached position for a market. The zero
// value with ok=false means flat/unknown, not an error.
func (h *Handle) Position(key domain.MarketKey) (domain.Position, bool) {
	v, ok := h.positions.Load(key)
	if !ok {
		return domain.Position{}, false
	}
	return v.(domain.Position), true
}

// PendingOrder looks up a pending order by cloid.
func (h *Handle) PendingOrder(cloid domain.ClientOrderId) (domain.PendingOrder, bool) {
	v, ok := h.pendingOrders.Load(cloid)
	if !ok {
		return domain.PendingOrder{}, false
	}
	return v.(domain.PendingOrder), true
}

// IsPendingMarket reports whether a market already has a reserved
// pending order (executor gate 7, §4.5).
func (h *Handle) IsPendingMarket(key domain.MarketKey) bool {
	_, ok := h.pendingMarkets.Load(key)
	return ok
}

// TryMarkPendingMarket atomically reserves a market for one pending
// order via insert-if-absent. Returns false if another order already
// holds the reservation.
func (h *Handle) TryMarkPendingMarket(key domain.MarketKey, cloid domain.ClientOrderId) bool {
	_, loaded := h.pendingMarkets.LoadOrStore(key, cloid)
	return !loaded
}

// UnmarkPendingMarket releases a market's reservation.
func (h *Handle) UnmarkPendingMarket(key domain.MarketKey) {
	h.pendingMarkets.Delete(key)
}

// AllPositions snapshots every market currently carrying a non-flat
// cached position. Used by the executor's MaxPositionTotal /
// MaxConcurrentPositions gates, which need the whole book rather than
// one market at a time.
func (h *Handle) AllPositions() map[domain.MarketKey]domain.Position {
	out := make(map[domain.MarketKey]domain.Position)
	h.positions.Range(func(k, v any) bool {
		out[k.(domain.MarketKey)] = v.(domain.Position)
		return true
	})
	return out
}

// AllPendingOrders snapshots every order currently reserved in the
// pending-order cache. Used by the executor's MaxPositionPerMarket /
// MaxPositionTotal gates to add pending (non-reduce-only) notional on
// top of filled position notional.
func (h *Handle) AllPendingOrders() []domain.PendingOrder {
	out := make([]domain.PendingOrder, 0)
	h.pendingOrders.Range(func(_, v any) bool {
		out = append(out, v.(domain.PendingOrder))
		return true
	})
	return out
}

// ReserveMarket performs the gate-7 insert-if-absent reservation ahead
// of cloid generation: the executor's admission pipeline needs the
// reservation in place before it knows whether gate 8 (ActionBudget)
// will also pass, and the cloid it will eventually register is not
// generated until gate 7 succeeds. The zero ClientOrderId is a
// placeholder value only; nothing reads the map's value for identity,
// only its presence (IsPendingMarket).
func (h *Handle) ReserveMarket(key domain.MarketKey) bool {
	return h.TryMarkPendingMarket(key, domain.ClientOrderId{})
}

// FinalizeOrder completes a reservation made by ReserveMarket once the
// full PendingOrder is known (after gate 8 passes and a cloid has been
// generated): it stores the order, replaces the reservation's
// placeholder value with the real cloid, and hands the registration to
// the actor. The caller must have already reserved order.Key via
// ReserveMarket; FinalizeOrder does not re-reserve (doing so via
// TryMarkPendingMarket would observe its own placeholder and fail).
func (h *Handle) FinalizeOrder(order domain.PendingOrder) error {
	h.pendingOrders.Store(order.Cloid, order)
	h.pendingMarkets.Store(order.Key, order.Cloid)

	select {
	case h.mailbox <- Message{Kind: RegisterOrder, Order: order}:
		return nil
	default:
		return errors.New(errors.KindActorMailboxFull, "position actor mailbox full").
			WithContext("cloid", order.Cloid.String())
	}
}

// TryRegisterOrder performs the handle-side cache writes (pending
// order + market reservation) before attempting a non-blocking send to
// the actor, per §4.11's ordering contract: handle-side updates happen
// before the message reaches the actor. On PendingOrderExists the
// caller does nothing further. On ActorMailboxFull the caller owns the
// decision to retry via the actor-only slow path or call
// RollbackOrderCaches to abandon.
func (h *Handle) TryRegisterOrder(order domain.PendingOrder) error {
	if !h.TryMarkPendingMarket(order.Key, order.Cloid) {
		return errors.New(errors.KindGateBlocked, "pending order already exists for market").
			WithContext("market", order.Key.String())
	}
	h.pendingOrders.Store(order.Cloid, order)

	select {
	case h.mailbox <- Message{Kind: RegisterOrder, Order: order}:
		return nil
	default:
		return errors.New(errors.KindActorMailboxFull, "position actor mailbox full").
			WithContext("cloid", order.Cloid.String())
	}
}

// RollbackOrderCaches undoes TryRegisterOrder's handle-side writes
// without ever having reached the actor — used when the caller decides
// to abandon an order after an ActorMailboxFull error.
func (h *Handle) RollbackOrderCaches(cloid domain.ClientOrderId, market domain.MarketKey) {
	h.pendingOrders.Delete(cloid)
	h.pendingMarkets.Delete(market)
}

// TrySend attempts a non-blocking send of an already-built message.
// Used for OrderUpdate, Fill, UnregisterOrder, SnapshotStart/End and
// Shutdown, none of which need handle-side cache writes up front.
func (h *Handle) TrySend(msg Message) bool {
	select {
	case h.mailbox <- msg:
		return true
	default:
		return false
	}
}
