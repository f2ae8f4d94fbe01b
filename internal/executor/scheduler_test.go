package executor

import (
	"testing"

	"hyperdrift-taker/pkg/domain"
)

func newTestScheduler(watermark, inflightCap int) (*Scheduler, *domain.HardStopLatch) {
	hardStop := &domain.HardStopLatch{}
	return NewScheduler(watermark, domain.NewInflightTracker(inflightCap), hardStop), hardStop
}

func TestTickPrioritizesCancelsOverOrders(t *testing.T) {
	s, _ := newTestScheduler(10, 10)
	key := domain.MarketKey{AssetIdx: 1}
	s.EnqueueCancel(domain.PendingCancel{Key: key, Oid: 1})
	s.EnqueueNewOrder(domain.PendingOrder{Cloid: domain.NewClientOrderId(), Key: key})

	batch, dropped := s.Tick()
	if batch.Kind != BatchCancels {
		t.Fatalf("expected BatchCancels, got %v", batch.Kind)
	}
	if len(dropped) != 0 {
		t.Fatalf("expected no drops, got %v", dropped)
	}

	// The new order queued earlier must still be pending for the next tick.
	batch2, _ := s.Tick()
	if batch2.Kind != BatchOrders || len(batch2.Orders) != 1 {
		t.Fatalf("expected the deferred order on the next tick, got %+v", batch2)
	}
}

func TestEnqueueReduceOnlyDedupesPerMarket(t *testing.T) {
	s, _ := newTestScheduler(10, 10)
	key := domain.MarketKey{AssetIdx: 2}
	if ok := s.EnqueueReduceOnly(domain.PendingOrder{Cloid: domain.NewClientOrderId(), Key: key}); !ok {
		t.Fatal("expected first reduce-only enqueue to succeed")
	}
	if ok := s.EnqueueReduceOnly(domain.PendingOrder{Cloid: domain.NewClientOrderId(), Key: key}); ok {
		t.Fatal("expected second reduce-only enqueue for the same market to be dropped")
	}

	batch, _ := s.Tick()
	if batch.Kind != BatchOrders || len(batch.Orders) != 1 {
		t.Fatalf("expected exactly one reduce-only order, got %+v", batch)
	}
}

func TestEnqueueNewOrderRespectsWatermark(t *testing.T) {
	s, _ := newTestScheduler(1, 10)
	key := domain.MarketKey{AssetIdx: 3}
	if r := s.EnqueueNewOrder(domain.PendingOrder{Cloid: domain.NewClientOrderId(), Key: key}); r != Queued {
		t.Fatalf("expected first enqueue to succeed, got %v", r)
	}
	if r := s.EnqueueNewOrder(domain.PendingOrder{Cloid: domain.NewClientOrderId(), Key: key}); r != QueueFull {
		t.Fatalf("expected QueueFull at the watermark, got %v", r)
	}
}

func TestEnqueueNewOrderRespectsInflightHeadroom(t *testing.T) {
	s, _ := newTestScheduler(10, 0)
	key := domain.MarketKey{AssetIdx: 4}
	if r := s.EnqueueNewOrder(domain.PendingOrder{Cloid: domain.NewClientOrderId(), Key: key}); r != InflightFull {
		t.Fatalf("expected InflightFull with zero inflight capacity, got %v", r)
	}
}

func TestTickDropsNewOrdersWhenHardStopTripped(t *testing.T) {
	s, hardStop := newTestScheduler(10, 10)
	key := domain.MarketKey{AssetIdx: 5}
	cloid := domain.NewClientOrderId()
	roKey := domain.MarketKey{AssetIdx: 6}
	s.EnqueueNewOrder(domain.PendingOrder{Cloid: cloid, Key: key})
	s.EnqueueReduceOnly(domain.PendingOrder{Cloid: domain.NewClientOrderId(), Key: roKey})
	hardStop.Trip("test")

	batch, dropped := s.Tick()
	if batch.Kind != BatchOrders || len(batch.Orders) != 1 {
		t.Fatalf("expected only the reduce-only order to survive, got %+v", batch)
	}
	if len(dropped) != 1 || dropped[0].Cloid != cloid || dropped[0].Market != key {
		t.Fatalf("expected the new order to be reported dropped, got %+v", dropped)
	}
}

func TestTickReturnsNoneWhenAllQueuesEmpty(t *testing.T) {
	s, _ := newTestScheduler(10, 10)
	batch, dropped := s.Tick()
	if batch.Kind != BatchNone {
		t.Fatalf("expected BatchNone, got %v", batch.Kind)
	}
	if dropped != nil {
		t.Fatalf("expected no drops, got %v", dropped)
	}
}
