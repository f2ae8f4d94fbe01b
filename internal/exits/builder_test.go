package exits

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

func TestBuildFlattenOrderLongSellsBelowBid(t *testing.T) {
	key := domain.MarketKey{AssetIdx: 1}
	b := NewFlattenOrderBuilder(fakeSpecs{key: testSpec()})
	pos := domain.Position{Key: key, Size: decimal.NewFromInt(5), EntryPrice: decimal.NewFromInt(100)}
	snap := domain.Snapshot{
		Key:    key,
		Bbo:    domain.BestBidOffer{Bid: domain.PriceFromFloat(100), Ask: domain.PriceFromFloat(100.1)},
		HasBbo: true,
	}

	order, ok := b.Build(pos, snap, decimal.NewFromInt(50), time.Now())
	if !ok {
		t.Fatal("expected a flatten order")
	}
	if order.Side != domain.Sell {
		t.Fatalf("expected a sell to exit a long, got %v", order.Side)
	}
	if !order.ReduceOnly {
		t.Fatal("expected the flatten order to be reduce-only")
	}
	if !order.Price.Decimal.LessThan(decimal.NewFromInt(100)) {
		t.Fatalf("expected the exit price below best bid, got %s", order.Price.Decimal)
	}
	if !order.Size.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected the full position size, got %s", order.Size.Decimal)
	}
}

func TestBuildFlattenOrderShortBuysAboveAsk(t *testing.T) {
	key := domain.MarketKey{AssetIdx: 2}
	b := NewFlattenOrderBuilder(fakeSpecs{key: testSpec()})
	pos := domain.Position{Key: key, Size: decimal.NewFromInt(-3), EntryPrice: decimal.NewFromInt(100)}
	snap := domain.Snapshot{
		Key:    key,
		Bbo:    domain.BestBidOffer{Bid: domain.PriceFromFloat(99.9), Ask: domain.PriceFromFloat(100)},
		HasBbo: true,
	}

	order, ok := b.Build(pos, snap, decimal.NewFromInt(50), time.Now())
	if !ok {
		t.Fatal("expected a flatten order")
	}
	if order.Side != domain.Buy {
		t.Fatalf("expected a buy to exit a short, got %v", order.Side)
	}
	if !order.Price.Decimal.GreaterThan(decimal.NewFromInt(100)) {
		t.Fatalf("expected the exit price above best ask, got %s", order.Price.Decimal)
	}
}

func TestBuildFlattenOrderRejectsFlatPosition(t *testing.T) {
	key := domain.MarketKey{AssetIdx: 3}
	b := NewFlattenOrderBuilder(fakeSpecs{key: testSpec()})
	pos := domain.Position{Key: key, Size: decimal.Zero}
	snap := domain.Snapshot{Key: key, HasBbo: true}

	if _, ok := b.Build(pos, snap, decimal.NewFromInt(50), time.Now()); ok {
		t.Fatal("expected no order for a flat position")
	}
}

func TestBuildFlattenOrderRejectsMissingBook(t *testing.T) {
	key := domain.MarketKey{AssetIdx: 4}
	b := NewFlattenOrderBuilder(fakeSpecs{key: testSpec()})
	pos := domain.Position{Key: key, Size: decimal.NewFromInt(1)}
	snap := domain.Snapshot{Key: key, HasBbo: false}

	if _, ok := b.Build(pos, snap, decimal.NewFromInt(50), time.Now()); ok {
		t.Fatal("expected no order when the book is missing")
	}
}

func TestBuildFlattenOrderRejectsMissingSpec(t *testing.T) {
	key := domain.MarketKey{AssetIdx: 5}
	b := NewFlattenOrderBuilder(fakeSpecs{})
	pos := domain.Position{Key: key, Size: decimal.NewFromInt(1)}
	snap := domain.Snapshot{Key: key, Bbo: domain.BestBidOffer{Bid: domain.PriceFromFloat(100), Ask: domain.PriceFromFloat(100.1)}, HasBbo: true}

	if _, ok := b.Build(pos, snap, decimal.NewFromInt(50), time.Now()); ok {
		t.Fatal("expected no order when the spec cache misses")
	}
}
