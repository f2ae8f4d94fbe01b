package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hyperdrift-taker/internal/position"
	"hyperdrift-taker/internal/signer"
	"hyperdrift-taker/internal/wsclient"
	"hyperdrift-taker/pkg/domain"
)

const defaultPostTimeout = 4 * time.Second

// NonceSource is satisfied by signer.Manager.
type NonceSource interface {
	Next() int64
}

// ActionSigner is satisfied by *signer.Signer.
type ActionSigner interface {
	SignAction(action any, nonce int64, vaultAddress string, expiresAfterMs int64) (signer.Signature, error)
}

// SpecLookup is satisfied by *specs.Cache.
type SpecLookup interface {
	Spec(key domain.MarketKey) (domain.MarketSpec, bool)
}

// Poster is satisfied by *wsclient.Session. ReleaseInflight is called
// by the tick loop itself on both branches of a resolved correlation
// (response received, or swept as timed out). wsclient's own
// handlePostResponse already releases the slot of an id it still holds
// as outstanding, so after a response the tick loop's call is a no-op;
// only the timeout sweep's call actually frees a slot.
type Poster interface {
	Post(payload wsclient.PostRequest) (wsclient.PostResult, uint64, error)
	ReleaseInflight(postID uint64)
}

// pendingRequest is one row of the post-request table (§4.10): the
// batch that was signed and sent, keyed by the wsclient-assigned
// post_id, kept around only long enough to correlate a response or
// time out.
type pendingRequest struct {
	kind    ActionBatchKind
	orders  []domain.PendingOrder
	cancels []domain.PendingCancel
	sentAt  time.Time
}

// TickLoop is the single task that signs, sends, and mutates the
// pending-request table (§4.10). It never runs concurrently with
// itself — Run drives it on a fixed cadence, and nothing else calls
// Tick directly.
type TickLoop struct {
	scheduler    *Scheduler
	tracker      *position.Tracker
	nonce        NonceSource
	signer       ActionSigner
	specs        SpecLookup
	poster       Poster
	vaultAddress string
	postTimeout  time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	table map[uint64]*pendingRequest
}

// Config bundles TickLoop's construction parameters.
type Config struct {
	Scheduler    *Scheduler
	Tracker      *position.Tracker
	Nonce        NonceSource
	Signer       ActionSigner
	Specs        SpecLookup
	Poster       Poster
	VaultAddress string
	PostTimeout  time.Duration
	Logger       *slog.Logger
}

// NewTickLoop builds a TickLoop from its collaborators.
func NewTickLoop(cfg Config) *TickLoop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.PostTimeout
	if timeout <= 0 {
		timeout = defaultPostTimeout
	}
	return &TickLoop{
		scheduler:    cfg.Scheduler,
		tracker:      cfg.Tracker,
		nonce:        cfg.Nonce,
		signer:       cfg.Signer,
		specs:        cfg.Specs,
		poster:       cfg.Poster,
		vaultAddress: cfg.VaultAddress,
		postTimeout:  timeout,
		logger:       logger.With("component", "tick_loop"),
		table:        make(map[uint64]*pendingRequest),
	}
}

// Run drives Tick on a 100ms cadence until ctx is cancelled.
func (tl *TickLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tl.Tick(time.Now())
		}
	}
}

// Tick runs exactly the nine-step sequence of §4.10 once.
func (tl *TickLoop) Tick(now time.Time) {
	tl.sweepTimeouts(now)

	batch, dropped := tl.scheduler.Tick()
	for _, d := range dropped {
		tl.cleanupOrder(d.Cloid, d.Market)
	}
	if batch.Kind == BatchNone {
		return
	}

	nonce := tl.nonce.Next()

	var action any
	switch batch.Kind {
	case BatchOrders:
		orderAction, ok := tl.convertOrders(batch.Orders)
		if !ok {
			tl.failBatch(batch)
			return
		}
		action = orderAction
	case BatchCancels:
		action = tl.convertCancels(batch.Cancels)
	}

	sig, err := tl.signer.SignAction(action, nonce, tl.vaultAddress, 0)
	if err != nil {
		tl.logger.Error("sign action failed", "error", err)
		tl.failBatch(batch)
		return
	}

	payload := wsclient.PostRequest{
		Type: "action",
		Payload: map[string]any{
			"action":    action,
			"nonce":     nonce,
			"signature": sig,
		},
	}
	if tl.vaultAddress != "" {
		payload.Payload.(map[string]any)["vaultAddress"] = tl.vaultAddress
	}

	result, postID, err := tl.poster.Post(payload)
	if err != nil || result != wsclient.Accepted {
		tl.logger.Warn("post not accepted", "result", result, "error", err)
		tl.failBatch(batch)
		return
	}

	tl.mu.Lock()
	tl.table[postID] = &pendingRequest{kind: batch.Kind, orders: batch.Orders, cancels: batch.Cancels, sentAt: now}
	tl.mu.Unlock()
}

// OnPostResponse correlates an inbound {"channel":"post",...} event to
// its pending-request row. Ok responses and Rejected responses both
// release the inflight slot; only a Rejected response is treated as
// terminal for the batch's orders (no requeue for new-orders, a single
// requeue with an alert for reduce-only).
func (tl *TickLoop) OnPostResponse(ev wsclient.PostResponseEvent) {
	tl.mu.Lock()
	req, ok := tl.table[ev.ID]
	if ok {
		delete(tl.table, ev.ID)
	}
	tl.mu.Unlock()
	if !ok {
		return
	}

	tl.poster.ReleaseInflight(ev.ID)

	if ev.Ok {
		return
	}

	tl.logger.Error("post rejected", "post_id", ev.ID, "reason", ev.Reason)
	for _, o := range req.orders {
		if o.ReduceOnly {
			tl.logger.Error("reduce-only order rejected, requeueing", "market", o.Key.String(), "reason", ev.Reason)
			tl.scheduler.EnqueueReduceOnly(o)
			continue
		}
		tl.cleanupOrder(o.Cloid, o.Key)
	}
}

// sweepTimeouts fails any correlation older than postTimeout: reduce-
// only orders are requeued, new orders are dropped and their caches
// cleaned, cancels are simply forgotten (a stale cancel is retried
// naturally if the resting order is still around next tick).
func (tl *TickLoop) sweepTimeouts(now time.Time) {
	tl.mu.Lock()
	var expiredIDs []uint64
	var expiredReqs []*pendingRequest
	for id, req := range tl.table {
		if now.Sub(req.sentAt) > tl.postTimeout {
			expiredIDs = append(expiredIDs, id)
			expiredReqs = append(expiredReqs, req)
			delete(tl.table, id)
		}
	}
	tl.mu.Unlock()

	for _, id := range expiredIDs {
		tl.poster.ReleaseInflight(id)
	}

	for _, req := range expiredReqs {
		for _, o := range req.orders {
			if o.ReduceOnly {
				tl.scheduler.EnqueueReduceOnly(o)
				continue
			}
			tl.cleanupOrder(o.Cloid, o.Key)
		}
	}
}

func (tl *TickLoop) failBatch(batch ActionBatch) {
	for _, o := range batch.Orders {
		if o.ReduceOnly {
			tl.scheduler.EnqueueReduceOnly(o)
			continue
		}
		tl.cleanupOrder(o.Cloid, o.Key)
	}
}

func (tl *TickLoop) cleanupOrder(cloid domain.ClientOrderId, market domain.MarketKey) {
	tl.tracker.Handle().TrySend(position.Message{Kind: position.UnregisterOrder, Cloid: cloid, Market: market})
}

func (tl *TickLoop) convertOrders(orders []domain.PendingOrder) (*signer.OrderAction, bool) {
	wireOrders := make([]signer.OrderWire, 0, len(orders))
	for _, o := range orders {
		spec, ok := tl.specs.Spec(o.Key)
		if !ok {
			return nil, false
		}
		wireOrders = append(wireOrders, signer.OrderWire{
			A: o.Key.AssetIdx,
			B: o.Side == domain.Buy,
			P: o.Price.Decimal.StringFixed(int32(spec.MaxPriceDecimals())),
			S: o.Size.Decimal.StringFixed(int32(spec.SzDecimals)),
			R: o.ReduceOnly,
			T: signer.OrderTypeWire{Limit: signer.LimitWire{Tif: string(o.Tif)}},
			C: o.Cloid.String(),
		})
	}
	return &signer.OrderAction{Type: "order", Orders: wireOrders, Grouping: "na"}, true
}

func (tl *TickLoop) convertCancels(cancels []domain.PendingCancel) *signer.CancelAction {
	wireCancels := make([]signer.CancelWire, 0, len(cancels))
	for _, c := range cancels {
		wireCancels = append(wireCancels, signer.CancelWire{A: c.Key.AssetIdx, O: c.Oid})
	}
	return &signer.CancelAction{Type: "cancel", Cancels: wireCancels}
}
