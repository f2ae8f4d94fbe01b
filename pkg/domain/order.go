package domain

import "time"

// PendingOrder is a not-yet-acknowledged order sitting in the executor's
// inflight set, keyed by ClientOrderId until the exchange assigns an OID.
type PendingOrder struct {
	Cloid     ClientOrderId
	Key       MarketKey
	Side      Side
	Price     Price
	Size      Size
	Tif       TimeInForce
	ReduceOnly bool
	SubmittedAt time.Time
	Nonce     uint64
}

// PendingCancel is a not-yet-acknowledged cancel request for a resting
// order, addressed by the exchange-assigned order id (cancels carry no
// cloid on the wire, unlike orders).
type PendingCancel struct {
	Key         MarketKey
	Oid         uint64
	SubmittedAt time.Time
}

// TrackedOrder is an order the exchange has acknowledged at least once.
// Oid is populated once the first ack names it; until then the order is
// addressed only by Cloid.
type TrackedOrder struct {
	Cloid ClientOrderId
	Oid   uint64
	Key   MarketKey
	Side  Side
	Price Price
	Size  Size
	FilledSize Size
	State TrackedState
	UpdatedAt time.Time
}

// TrackedState is a plain alias of OrderState: the executor's order
// table tracks exactly the OrderState values, with no extra states.
type TrackedState = OrderState

// IsResting reports whether the order may still receive fills.
func (o TrackedOrder) IsResting() bool {
	return !o.State.IsTerminal()
}

// Remaining is the size still eligible to fill.
func (o TrackedOrder) Remaining() Size {
	return Size{o.Size.Decimal.Sub(o.FilledSize.Decimal)}
}
