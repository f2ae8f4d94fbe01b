package signer

// Action wire shapes for the two action types this taker ever submits,
// per spec.md §4.9. Field names are the exchange's single-letter wire
// keys, not Go-idiomatic names — the msgpack tag IS the wire contract.

// LimitWire carries the order's time-in-force.
type LimitWire struct {
	Tif string `msgpack:"tif"`
}

// OrderTypeWire wraps the order-type variant; only "limit" is ever used.
type OrderTypeWire struct {
	Limit LimitWire `msgpack:"limit"`
}

// OrderWire is one order within an "order" action. Prices and sizes
// must already be rounded by MarketSpec before this struct is built.
type OrderWire struct {
	A uint32        `msgpack:"a"`
	B bool          `msgpack:"b"`
	P string        `msgpack:"p"`
	S string        `msgpack:"s"`
	R bool          `msgpack:"r"`
	T OrderTypeWire `msgpack:"t"`
	C string        `msgpack:"c,omitempty"`
}

// BuilderWire is the optional builder-fee attribution block.
type BuilderWire struct {
	Builder string `msgpack:"b"`
	Fee     int    `msgpack:"f"`
}

// OrderAction is the msgpack-encoded payload for an "order" action.
type OrderAction struct {
	Type     string       `msgpack:"type"`
	Orders   []OrderWire  `msgpack:"orders"`
	Grouping string       `msgpack:"grouping"`
	Builder  *BuilderWire `msgpack:"builder,omitempty"`
}

// CancelWire identifies one order to cancel by asset index + order id.
type CancelWire struct {
	A uint32 `msgpack:"a"`
	O uint64 `msgpack:"o"`
}

// CancelAction is the msgpack-encoded payload for a "cancel" action. It
// carries no "grouping" key — the exchange schema omits it for cancels.
type CancelAction struct {
	Type    string       `msgpack:"type"`
	Cancels []CancelWire `msgpack:"cancels"`
}
