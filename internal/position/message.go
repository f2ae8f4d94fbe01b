package position

import (
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

// Kind discriminates the position actor's mailbox messages (§4.11).
type Kind int

const (
	RegisterOrder Kind = iota
	OrderUpdate
	Fill
	UnregisterOrder
	SnapshotStart
	SnapshotEnd
	Shutdown
)

// Message is the single envelope type sent through the actor's
// mailbox. Only the fields relevant to Kind are populated.
type Message struct {
	Kind Kind

	Order domain.PendingOrder  // RegisterOrder
	Cloid domain.ClientOrderId // UnregisterOrder, OrderUpdate, Fill

	Market domain.MarketKey // UnregisterOrder, OrderUpdate, Fill
	Status domain.OrderState
	Ts     time.Time

	FillSide  domain.Side
	FillPrice decimal.Decimal
	FillSize  decimal.Decimal
}
