package wsclient

// Wire message shapes for the Hyperliquid WebSocket API (§6 of the
// component spec). Field order on outbound frames is preserved by Go's
// struct-to-JSON encoder, which is required for signature compatibility
// on post frames.

// SubscribeFrame is the outbound subscribe/unsubscribe request.
type SubscribeFrame struct {
	Method       string       `json:"method"`
	Subscription Subscription `json:"subscription"`
}

// Subscription names one channel: {"type":"bbo","coin":"xyz:TLT"}, etc.
type Subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
	User string `json:"user,omitempty"`
}

// PostFrame is the outbound post request wrapping either an info query
// or a signed action.
type PostFrame struct {
	Method  string     `json:"method"`
	ID      uint64     `json:"id"`
	Request PostRequest `json:"request"`
}

// PostRequest carries the payload; Type is "action" or "info".
type PostRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// InboundMessage is the generic inbound envelope; Channel selects how
// Data is interpreted.
type InboundMessage struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// channelEnvelope is used only to peek at the channel name before
// unmarshalling the typed payload.
type channelEnvelope struct {
	Channel string `json:"channel"`
}

// PostResponseData is the data payload of a {"channel":"post",...} message.
type PostResponseData struct {
	ID       uint64         `json:"id"`
	Response PostResponseBody `json:"response"`
}

// PostResponseBody carries either an info/action success payload or an
// error. Type is "info" | "action" | "error".
type PostResponseBody struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SubscriptionResponseData is the data payload of a
// {"channel":"subscriptionResponse",...} message. The exchange's exact
// wrapping (bare subscription object vs. named key) is only partially
// documented; only the named "subscription" key is decoded, so a bare
// object leaves Subscription.Type empty and acknowledges nothing.
type SubscriptionResponseData struct {
	Method       string       `json:"method"`
	Subscription Subscription `json:"subscription"`
	Error        string       `json:"error,omitempty"`
}

// BboWireEvent is the {"channel":"bbo",...} payload.
type BboWireEvent struct {
	Coin string      `json:"coin"`
	Time int64       `json:"time"`
	Bbo  [2]WireLevel `json:"bbo"` // [bid, ask]
}

// WireLevel is one book level on the wire.
type WireLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
}

// ActiveAssetCtxData is the {"channel":"activeAssetCtx",...} payload.
type ActiveAssetCtxData struct {
	Coin string  `json:"coin"`
	Ctx  AssetCtx `json:"ctx"`
}

// AssetCtx carries oracle/mark/open-interest/funding for one asset.
type AssetCtx struct {
	OraclePx     string `json:"oraclePx"`
	MarkPx       string `json:"markPx"`
	OpenInterest string `json:"openInterest"`
	Funding      string `json:"funding"`
}

// OrderUpdateWire is one element of the {"channel":"orderUpdates",...} payload.
type OrderUpdateWire struct {
	Order           OrderWireStatus `json:"order"`
	Status          string          `json:"status"`
	StatusTimestamp int64           `json:"statusTimestamp"`
}

// OrderWireStatus is the order detail nested in an order update.
type OrderWireStatus struct {
	Coin   string `json:"coin"`
	Side   string `json:"side"`
	LimitPx string `json:"limitPx"`
	Sz     string `json:"sz"`
	Oid    uint64 `json:"oid"`
	Cloid  string `json:"cloid,omitempty"`
	OrigSz string `json:"origSz"`
}

// FillWire is one element of the {"channel":"userFills",...} payload.
type FillWire struct {
	Coin  string `json:"coin"`
	Px    string `json:"px"`
	Sz    string `json:"sz"`
	Side  string `json:"side"`
	Time  int64  `json:"time"`
	Oid   uint64 `json:"oid"`
	Cloid string `json:"cloid,omitempty"`
}

// UserFillsData wraps the fills slice; IsSnapshot marks the initial
// snapshot batch, which the position tracker intentionally ignores
// (§9 open question: snapshot fills may be stale, the REST clearinghouse
// fetch is the seed of record).
type UserFillsData struct {
	IsSnapshot bool       `json:"isSnapshot"`
	Fills      []FillWire `json:"fills"`
}
