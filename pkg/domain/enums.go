// Package domain defines shared data structures used across all packages.
//
// This package is the common vocabulary for the taker: decimal-backed
// price/size, market identity, order and position lifecycle, and the
// small set of lock-free primitives (inflight tracker, action budget,
// hard-stop latch) that the executor and WS session share without a
// channel round-trip. It has no dependencies on internal packages, so
// it can be imported by any layer.
package domain

// Side is the direction of an order or position.
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce enumerates the order lifecycles the executor can submit.
// Only Ioc is used on the hot path; Gtc/Alo are carried because the
// wire schema names them (§4.9) even though this strategy never issues them.
type TimeInForce string

const (
	TifIoc TimeInForce = "Ioc"
	TifGtc TimeInForce = "Gtc"
	TifAlo TimeInForce = "Alo"
)

// OrderState is the lifecycle of a TrackedOrder.
type OrderState string

const (
	OrderPending         OrderState = "Pending"
	OrderOpen            OrderState = "Open"
	OrderPartiallyFilled OrderState = "PartiallyFilled"
	OrderFilled          OrderState = "Filled"
	OrderCancelled       OrderState = "Cancelled"
	OrderRejected        OrderState = "Rejected"
	OrderExpired         OrderState = "Expired"
	// OrderScheduledCancel is observed on the wire but undocumented by
	// the exchange; treated as terminal so a pending market reservation
	// never gets stuck behind it.
	OrderScheduledCancel OrderState = "scheduledCancel"
)

// IsTerminal reports whether no further transitions are expected for this state.
func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderExpired, OrderScheduledCancel:
		return true
	default:
		return false
	}
}

// BboClass is the freshness/validity classification the aggregator
// assigns a BestBidOffer at read time (§4.2).
type BboClass string

const (
	BboNull  BboClass = "Null"
	BboStale BboClass = "Stale"
	BboFresh BboClass = "Fresh"
)
