package core

import (
	"strings"
	"sync"

	"hyperdrift-taker/pkg/domain"
)

// normalizeOrderState maps a raw wire status string to a domain.OrderState
// (§4.11): exact matches for the documented statuses, then suffix
// patterns for the exchange's own "XRejected"/"XCanceled" family, then
// the known-but-undocumented scheduledCancel terminal.
func normalizeOrderState(raw string) (domain.OrderState, bool) {
	switch raw {
	case "pending":
		return domain.OrderPending, true
	case "open":
		return domain.OrderOpen, true
	case "filled":
		return domain.OrderFilled, true
	case "canceled", "cancelled":
		return domain.OrderCancelled, true
	case "rejected":
		return domain.OrderRejected, true
	case "marginCanceled":
		return domain.OrderCancelled, true
	case string(domain.OrderScheduledCancel):
		return domain.OrderScheduledCancel, true
	}
	switch {
	case strings.HasSuffix(raw, "Rejected"):
		return domain.OrderRejected, true
	case strings.HasSuffix(raw, "Canceled"), strings.HasSuffix(raw, "Cancelled"):
		return domain.OrderCancelled, true
	}
	return "", false
}

// sideFromWire maps Hyperliquid's single-letter fill/order side code
// ("B" bid/buy, "A" ask/sell) to domain.Side.
func sideFromWire(raw string) domain.Side {
	if raw == "A" {
		return domain.Sell
	}
	return domain.Buy
}

// fillDedup is the bounded recently-processed-cloid set of §4.11: both
// a userFills event and a post-response Filled event can report the
// same fill, so the dispatch loop only forwards a Fill message to the
// position tracker the first time a given cloid is seen. Cleared
// wholesale once it grows past a large threshold rather than evicting
// individually — a fill cloid is never revisited once terminal, so an
// unbounded-looking map never actually accumulates stale entries for
// long in practice.
type fillDedup struct {
	mu      sync.Mutex
	seen    map[domain.ClientOrderId]struct{}
	maxSize int
}

func newFillDedup(maxSize int) *fillDedup {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &fillDedup{seen: make(map[domain.ClientOrderId]struct{}), maxSize: maxSize}
}

// Seen reports whether cloid has already been processed, recording it
// as seen if not. A zero-value cloid (exchange-originated fill, no
// client order id) is never deduped — always reported unseen.
func (f *fillDedup) Seen(cloid domain.ClientOrderId) bool {
	if cloid == (domain.ClientOrderId{}) {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[cloid]; ok {
		return true
	}
	if len(f.seen) >= f.maxSize {
		f.seen = make(map[domain.ClientOrderId]struct{})
	}
	f.seen[cloid] = struct{}{}
	return false
}
