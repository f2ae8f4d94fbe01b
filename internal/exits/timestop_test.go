package exits

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

func TestTimeStopSweepFlattensAStalePosition(t *testing.T) {
	key := domain.MarketKey{AssetIdx: 1}
	now := time.Now()
	pos := domain.Position{Key: key, Size: decimal.NewFromInt(5), EntryPrice: decimal.NewFromInt(100), OpenedAt: now.Add(-time.Hour)}
	snap := domain.Snapshot{Key: key, Bbo: domain.BestBidOffer{Bid: domain.PriceFromFloat(100), Ask: domain.PriceFromFloat(100.1)}, HasBbo: true}

	positions := fakePositions{positions: map[domain.MarketKey]domain.Position{key: pos}}
	snapshots := fakeSnapshots{key: snap}
	queue := &fakeQueue{}
	builder := NewFlattenOrderBuilder(fakeSpecs{key: testSpec()})

	m := NewTimeStopMonitor(positions, snapshots, queue, builder, TimeStopConfig{Threshold: 30 * time.Second}, nil)
	m.sweep(now)

	if len(queue.enqueued) != 1 {
		t.Fatalf("expected one flatten order enqueued, got %d", len(queue.enqueued))
	}
	if queue.enqueued[0].Side != domain.Sell {
		t.Fatalf("expected a sell to exit the long, got %v", queue.enqueued[0].Side)
	}
}

func TestTimeStopSweepSkipsFreshPosition(t *testing.T) {
	key := domain.MarketKey{AssetIdx: 2}
	now := time.Now()
	pos := domain.Position{Key: key, Size: decimal.NewFromInt(5), OpenedAt: now.Add(-time.Second)}
	positions := fakePositions{positions: map[domain.MarketKey]domain.Position{key: pos}}
	queue := &fakeQueue{}
	builder := NewFlattenOrderBuilder(fakeSpecs{key: testSpec()})

	m := NewTimeStopMonitor(positions, fakeSnapshots{}, queue, builder, TimeStopConfig{Threshold: 30 * time.Second}, nil)
	m.sweep(now)

	if len(queue.enqueued) != 0 {
		t.Fatalf("expected no flatten order for a fresh position, got %d", len(queue.enqueued))
	}
}

func TestTimeStopSweepSkipsFlatPosition(t *testing.T) {
	key := domain.MarketKey{AssetIdx: 3}
	now := time.Now()
	pos := domain.Position{Key: key, Size: decimal.Zero, OpenedAt: time.Time{}}
	positions := fakePositions{positions: map[domain.MarketKey]domain.Position{key: pos}}
	queue := &fakeQueue{}
	builder := NewFlattenOrderBuilder(fakeSpecs{key: testSpec()})

	m := NewTimeStopMonitor(positions, fakeSnapshots{}, queue, builder, TimeStopConfig{Threshold: 30 * time.Second}, nil)
	m.sweep(now)

	if len(queue.enqueued) != 0 {
		t.Fatalf("expected no flatten order for a flat position, got %d", len(queue.enqueued))
	}
}
