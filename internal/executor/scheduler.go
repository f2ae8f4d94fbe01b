package executor

import (
	"sync"

	"hyperdrift-taker/pkg/domain"
)

// ActionBatchKind discriminates the two wire action shapes a tick can
// submit. A batch is never mixed — the wire action type ("order" vs
// "cancel") is per-batch, per §4.6.
type ActionBatchKind int

const (
	BatchNone ActionBatchKind = iota
	BatchCancels
	BatchOrders
)

// ActionBatch is what Tick hands back for the tick loop to sign and post.
type ActionBatch struct {
	Kind    ActionBatchKind
	Cancels []domain.PendingCancel
	Orders  []domain.PendingOrder
}

// EnqueueResult reports the admission outcome of EnqueueNewOrder.
type EnqueueResult int

const (
	Queued EnqueueResult = iota
	QueueFull
	InflightFull
)

// DroppedOrder names a new order the scheduler discarded because the
// hard-stop latch was tripped at Tick time, so the caller can clean up
// the position-tracker caches deterministically.
type DroppedOrder struct {
	Cloid  domain.ClientOrderId
	Market domain.MarketKey
}

// Scheduler holds the three priority queues in strict order: cancels
// always win, reduce-only orders are always admitted (exits are
// safety), new orders are gated by the inflight tracker and a
// configurable high-watermark.
type Scheduler struct {
	mu sync.Mutex

	cancelQueue     []domain.PendingCancel
	reduceOnlyQueue []domain.PendingOrder
	newOrderQueue   []domain.PendingOrder

	newOrderWatermark int
	inflight          *domain.InflightTracker
	hardStop          *domain.HardStopLatch
}

// NewScheduler builds a Scheduler. newOrderWatermark bounds the
// new_order_queue's length; the cancel and reduce-only queues are
// never bounded, since neither is inflight- or watermark-gated.
func NewScheduler(newOrderWatermark int, inflight *domain.InflightTracker, hardStop *domain.HardStopLatch) *Scheduler {
	return &Scheduler{newOrderWatermark: newOrderWatermark, inflight: inflight, hardStop: hardStop}
}

// EnqueueCancel always admits — cancels are the highest-priority,
// unconditionally-safe action this process ever submits.
func (s *Scheduler) EnqueueCancel(c domain.PendingCancel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelQueue = append(s.cancelQueue, c)
}

// EnqueueReduceOnly always admits, but deduplicates per market: if a
// reduce-only order for the same market is already queued, the new one
// is dropped. This prevents the exit monitors from flooding the queue
// while a prior flatten attempt's fill has not yet settled.
func (s *Scheduler) EnqueueReduceOnly(o domain.PendingOrder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.reduceOnlyQueue {
		if q.Key == o.Key {
			return false
		}
	}
	s.reduceOnlyQueue = append(s.reduceOnlyQueue, o)
	return true
}

// EnqueueNewOrder admits a speculative new order subject to the
// inflight tracker's remaining headroom and the configurable
// high-watermark on queue length.
func (s *Scheduler) EnqueueNewOrder(o domain.PendingOrder) EnqueueResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.newOrderWatermark > 0 && len(s.newOrderQueue) >= s.newOrderWatermark {
		return QueueFull
	}
	if s.inflight.Remaining() <= 0 {
		return InflightFull
	}
	s.newOrderQueue = append(s.newOrderQueue, o)
	return Queued
}

// Tick drains the queues into at most one ActionBatch, respecting
// strict priority: cancels first; otherwise reduce-only and new orders
// combined (both are "order" actions, distinguished per-order by the
// reduce_only wire flag). When the hard-stop latch is tripped, queued
// new orders are dropped instead of submitted and reported back via
// the returned slice so the caller can clean up position-tracker
// caches for each (cloid, market) pair.
func (s *Scheduler) Tick() (ActionBatch, []DroppedOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []DroppedOrder
	if s.hardStop.IsTripped() && len(s.newOrderQueue) > 0 {
		for _, o := range s.newOrderQueue {
			dropped = append(dropped, DroppedOrder{Cloid: o.Cloid, Market: o.Key})
		}
		s.newOrderQueue = nil
	}

	if len(s.cancelQueue) > 0 {
		batch := ActionBatch{Kind: BatchCancels, Cancels: s.cancelQueue}
		s.cancelQueue = nil
		return batch, dropped
	}

	if len(s.reduceOnlyQueue) == 0 && len(s.newOrderQueue) == 0 {
		return ActionBatch{Kind: BatchNone}, dropped
	}

	orders := make([]domain.PendingOrder, 0, len(s.reduceOnlyQueue)+len(s.newOrderQueue))
	orders = append(orders, s.reduceOnlyQueue...)
	orders = append(orders, s.newOrderQueue...)
	s.reduceOnlyQueue = nil
	s.newOrderQueue = nil
	return ActionBatch{Kind: BatchOrders, Orders: orders}, dropped
}
