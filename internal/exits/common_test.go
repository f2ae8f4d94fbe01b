package exits

import (
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

type fakeSpecs map[domain.MarketKey]domain.MarketSpec

func (f fakeSpecs) Spec(key domain.MarketKey) (domain.MarketSpec, bool) {
	s, ok := f[key]
	return s, ok
}

func testSpec() domain.MarketSpec {
	return domain.NewMarketSpec("xyz:TLT", decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.001), 3, decimal.NewFromFloat(0.001), 20, decimal.NewFromFloat(0.0003))
}

type fakePositions struct {
	positions map[domain.MarketKey]domain.Position
	pending   []domain.PendingOrder
}

func (f fakePositions) AllPositions() map[domain.MarketKey]domain.Position { return f.positions }
func (f fakePositions) AllPendingOrders() []domain.PendingOrder            { return f.pending }

type fakeSnapshots map[domain.MarketKey]domain.Snapshot

func (f fakeSnapshots) GetSnapshot(key domain.MarketKey, now time.Time) (domain.Snapshot, bool) {
	s, ok := f[key]
	return s, ok
}

type fakeQueue struct {
	enqueued []domain.PendingOrder
}

func (f *fakeQueue) EnqueueReduceOnly(o domain.PendingOrder) bool {
	f.enqueued = append(f.enqueued, o)
	return true
}
