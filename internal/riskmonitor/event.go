package riskmonitor

import (
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

// EventKind discriminates the execution-event stream the monitor consumes (§4.13).
type EventKind int

const (
	OrderFilled EventKind = iota
	OrderRejected
	FlattenFailed
	SlippageMeasured
)

// Event is the single envelope type the executor and exit monitors
// publish to the risk monitor. Only the fields relevant to Kind are populated.
type Event struct {
	Kind   EventKind
	Market domain.MarketKey
	Ts     time.Time

	// RealizedPnl is populated for OrderFilled; negative is a loss.
	RealizedPnl decimal.Decimal
	// SlippageBps is populated for SlippageMeasured: the signed bps
	// difference between the order's limit price and its fill price,
	// positive when the fill is adverse; the monitor compares its
	// magnitude against the threshold.
	SlippageBps decimal.Decimal
}
