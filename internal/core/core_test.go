package core

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/internal/config"
	"hyperdrift-taker/internal/detector"
	"hyperdrift-taker/internal/executor"
	"hyperdrift-taker/internal/exits"
	"hyperdrift-taker/internal/gates"
	"hyperdrift-taker/internal/marketstate"
	"hyperdrift-taker/internal/position"
	"hyperdrift-taker/internal/restclient"
	"hyperdrift-taker/internal/riskmonitor"
	"hyperdrift-taker/internal/specs"
	"hyperdrift-taker/internal/wsclient"
	"hyperdrift-taker/pkg/domain"
)

func testSpec() domain.MarketSpec {
	return domain.NewMarketSpec("xyz:TLT", decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.001), 3, decimal.NewFromFloat(0.001), 20, decimal.NewFromFloat(0.0003))
}

// newTestOrchestrator wires every collaborator by hand, the way New
// does, but skips the REST preflight so tests don't need a live
// exchange: the caller seeds specsCache/marketParams/marketOiCap
// directly for whatever markets it needs.
func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	hardStop := &domain.HardStopLatch{}
	budget := domain.NewActionBudget(1000, time.Minute)
	specsCache := specs.NewCache()
	agg := marketstate.NewAggregator(time.Minute)
	gatesEv := gates.NewEvaluator(gates.Thresholds{
		MaxBboAge:        time.Minute,
		MaxCtxAge:        time.Minute,
		MaxDivergenceBps: decimal.NewFromInt(100),
		SpreadShockK:     decimal.NewFromInt(10),
		SpreadEwmaAlpha:  decimal.NewFromFloat(0.1),
		MaxOiFraction:    decimal.NewFromFloat(0.1),
	}, nil)
	det := detector.New(decimal.NewFromInt(1), nil)
	tracker := position.New(nil)
	handle := tracker.Handle()
	marks := newMarkPriceLookup(agg)

	execGates := executor.NewGates(executor.Limits{
		MaxNotionalPerMarket:   decimal.NewFromInt(1_000_000),
		MaxNotionalTotal:       decimal.NewFromInt(1_000_000),
		MaxConcurrentPositions: 10,
	}, hardStop, budget, handle, marks)
	sched := executor.NewScheduler(10, domain.NewInflightTracker(10), hardStop)
	submitter := executor.NewSubmitter(execGates, sched, tracker, hardStop, nil)

	flattenBuilder := exits.NewFlattenOrderBuilder(specsCache)
	riskMon := riskmonitor.NewMonitor(config.RiskMonConfig{MaxCumulativeLoss: 1_000_000}, hardStop, nil)
	ws := wsclient.NewSession(wsclient.Config{Resolver: specsCache})

	return &Orchestrator{
		cfg:            &config.Config{Exits: config.ExitsConfig{TimeStopSlippageBps: 5}},
		logger:         slog.Default(),
		hardStop:       hardStop,
		budget:         budget,
		specsCache:     specsCache,
		discovery:      newDiscoveryTracker(),
		marketParams:   make(map[domain.MarketKey]detector.MarketParams),
		marketOiCap:    make(map[domain.MarketKey]decimal.Decimal),
		agg:            agg,
		gatesEv:        gatesEv,
		det:            det,
		tracker:        tracker,
		execGate:       execGates,
		sched:          sched,
		submit:         submitter,
		ws:             ws,
		flattenBuilder: flattenBuilder,
		riskMon:        riskMon,
		trend:          newTrendTracker(),
		dedup:          newFillDedup(0),
		oids:           newOidMap(),
	}
}

func TestNormalizeOrderState(t *testing.T) {
	cases := map[string]domain.OrderState{
		"open":           domain.OrderOpen,
		"filled":         domain.OrderFilled,
		"canceled":       domain.OrderCancelled,
		"marginCanceled": domain.OrderCancelled,
		"tickRejected":   domain.OrderRejected,
		"userCanceled":   domain.OrderCancelled,
	}
	for raw, want := range cases {
		got, ok := normalizeOrderState(raw)
		if !ok || got != want {
			t.Errorf("normalizeOrderState(%q) = %v, %v; want %v, true", raw, got, ok, want)
		}
	}
	if _, ok := normalizeOrderState("gibberish"); ok {
		t.Error("expected unrecognized status to return ok=false")
	}
}

func TestSideFromWire(t *testing.T) {
	if sideFromWire("A") != domain.Sell {
		t.Error("expected \"A\" to map to Sell")
	}
	if sideFromWire("B") != domain.Buy {
		t.Error("expected \"B\" to map to Buy")
	}
}

func TestFillDedupSeenOnce(t *testing.T) {
	d := newFillDedup(0)
	cloid, err := domain.ParseClientOrderId("0x000000000000000000000000000000aa")
	if err != nil {
		t.Fatalf("parse cloid: %v", err)
	}
	if d.Seen(cloid) {
		t.Fatal("expected first sighting to report unseen")
	}
	if !d.Seen(cloid) {
		t.Fatal("expected second sighting to report seen")
	}
}

func TestFillDedupZeroCloidNeverDeduped(t *testing.T) {
	d := newFillDedup(0)
	var zero domain.ClientOrderId
	if d.Seen(zero) || d.Seen(zero) {
		t.Fatal("expected zero-value cloid to never be deduped")
	}
}

func TestOidMapObserveLookupForget(t *testing.T) {
	m := newOidMap()
	cloid, _ := domain.ParseClientOrderId("0x000000000000000000000000000000bb")

	if _, ok := m.Lookup(cloid); ok {
		t.Fatal("expected no oid before Observe")
	}
	m.Observe(cloid, 42)
	oid, ok := m.Lookup(cloid)
	if !ok || oid != 42 {
		t.Fatalf("Lookup = %d, %v; want 42, true", oid, ok)
	}
	m.Observe(cloid, 0) // a zero oid must never overwrite a known one
	if oid, _ := m.Lookup(cloid); oid != 42 {
		t.Fatalf("zero oid overwrote a known mapping, got %d", oid)
	}
	m.Forget(cloid)
	if _, ok := m.Lookup(cloid); ok {
		t.Fatal("expected Forget to remove the mapping")
	}
}

func TestTrendTrackerObserveAndLast(t *testing.T) {
	tr := newTrendTracker()
	key := domain.MarketKey{AssetIdx: 1}

	if got := tr.Last(key); got.Rising || got.Falling {
		t.Fatalf("expected zero trend before any observation, got %+v", got)
	}

	tr.Observe(key, decimal.NewFromInt(100))
	if got := tr.Observe(key, decimal.NewFromInt(110)); !got.Rising {
		t.Fatalf("expected rising trend on price increase, got %+v", got)
	}
	if got := tr.Last(key); !got.Rising {
		t.Fatalf("expected Last to report the previously observed trend, got %+v", got)
	}

	if got := tr.Observe(key, decimal.NewFromInt(90)); !got.Falling {
		t.Fatalf("expected falling trend on price decrease, got %+v", got)
	}
}

func TestDiscoveryTrackerRefreshTracksOiHaltAndParamChange(t *testing.T) {
	key := domain.MarketKey{AssetIdx: 1}
	cache := specs.NewCache()
	spec := testSpec()
	cache.Seed("xyz:TLT", key, spec)

	d := newDiscoveryTracker()
	d.Refresh(cache, []restclient.MarketInfo{{Coin: "xyz:TLT", Key: key, Spec: spec, OpenInterest: decimal.NewFromInt(500)}})

	if !d.OpenInterest(key).Equal(decimal.NewFromInt(500)) {
		t.Fatalf("OpenInterest = %s, want 500", d.OpenInterest(key))
	}
	if d.Halted(key) {
		t.Fatal("expected an active spec to not be halted")
	}
	if d.ParamChanged(key) {
		t.Fatal("expected no param change on first refresh")
	}

	changedSpec := spec
	changedSpec.TickSize = decimal.NewFromFloat(0.02)
	changedSpec.IsActive = false
	d.Refresh(cache, []restclient.MarketInfo{{Coin: "xyz:TLT", Key: key, Spec: changedSpec, OpenInterest: decimal.NewFromInt(600)}})

	if !d.Halted(key) {
		t.Fatal("expected inactive spec to report halted")
	}
	if !d.ParamChanged(key) {
		t.Fatal("expected tick-size drift to latch param changed")
	}
}

func TestMarkPriceLookupReturnsMarkPrice(t *testing.T) {
	agg := marketstate.NewAggregator(time.Minute)
	key := domain.MarketKey{AssetIdx: 1}
	agg.UpdateCtx(key, domain.OracleCtx{OraclePrice: domain.PriceFromFloat(100), MarkPrice: domain.PriceFromFloat(101), ReceivedAt: time.Now()})

	lookup := newMarkPriceLookup(agg)
	px, ok := lookup.MarkPrice(key)
	if !ok || !px.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("MarkPrice = %s, %v; want 101, true", px, ok)
	}

	if _, ok := lookup.MarkPrice(domain.MarketKey{AssetIdx: 99}); ok {
		t.Fatal("expected no mark price for an unknown market")
	}
}

func TestHandleOrderUpdateTracksAndForgetsOid(t *testing.T) {
	o := newTestOrchestrator(t)
	key := domain.MarketKey{AssetIdx: 1}
	cloid := domain.NewClientOrderId()
	if err := o.tracker.Handle().TryRegisterOrder(domain.PendingOrder{Cloid: cloid, Key: key, Side: domain.Buy, ReduceOnly: true}); err != nil {
		t.Fatalf("register order: %v", err)
	}

	o.handleOrderUpdate(&wsclient.OrderUpdateEvent{Cloid: cloid.String(), Oid: 7, Status: "open", Ts: time.Now().UnixMilli()})
	if oid, ok := o.oids.Lookup(cloid); !ok || oid != 7 {
		t.Fatalf("expected oid 7 tracked after open update, got %d, %v", oid, ok)
	}

	o.handleOrderUpdate(&wsclient.OrderUpdateEvent{Cloid: cloid.String(), Oid: 7, Status: "rejected", Ts: time.Now().UnixMilli()})
	if _, ok := o.oids.Lookup(cloid); ok {
		t.Fatal("expected oid mapping forgotten once the order reached a terminal state")
	}
}

func TestCancelAllForMarketOnlyCancelsKnownOidsInThatMarket(t *testing.T) {
	o := newTestOrchestrator(t)
	key := domain.MarketKey{AssetIdx: 1}
	other := domain.MarketKey{AssetIdx: 2}

	known := domain.NewClientOrderId()
	elsewhere := domain.NewClientOrderId()

	if err := o.tracker.Handle().TryRegisterOrder(domain.PendingOrder{Cloid: known, Key: key}); err != nil {
		t.Fatal(err)
	}
	if err := o.tracker.Handle().TryRegisterOrder(domain.PendingOrder{Cloid: elsewhere, Key: other}); err != nil {
		t.Fatal(err)
	}
	o.oids.Observe(known, 55)
	o.oids.Observe(elsewhere, 77)

	o.cancelAllForMarket(key)

	batch, _ := o.sched.Tick()
	if batch.Kind != executor.BatchCancels || len(batch.Cancels) != 1 || batch.Cancels[0].Oid != 55 {
		t.Fatalf("expected exactly one cancel for oid 55, got %+v", batch)
	}
}

func TestCancelAllForMarketSkipsOrdersWithUnknownOid(t *testing.T) {
	o := newTestOrchestrator(t)
	key := domain.MarketKey{AssetIdx: 1}
	noOid := domain.NewClientOrderId()
	if err := o.tracker.Handle().TryRegisterOrder(domain.PendingOrder{Cloid: noOid, Key: key}); err != nil {
		t.Fatal(err)
	}

	o.cancelAllForMarket(key)

	if batch, _ := o.sched.Tick(); batch.Kind != executor.BatchNone {
		t.Fatalf("expected no cancel for an order with no known oid, got %+v", batch)
	}
}

func TestTriggerStopFlattensAHeldPosition(t *testing.T) {
	o := newTestOrchestrator(t)
	key := domain.MarketKey{AssetIdx: 1}
	o.specsCache.Seed("xyz:TLT", key, testSpec())
	o.tracker.SeedPosition(domain.Position{Key: key, Size: decimal.NewFromInt(5), EntryPrice: decimal.NewFromInt(100)})

	snap := domain.Snapshot{
		Key:       key,
		Bbo:       domain.BestBidOffer{Bid: domain.PriceFromFloat(99), Ask: domain.PriceFromFloat(100)},
		HasBbo:    true,
		HasOracle: true,
	}
	o.triggerStop(key, snap)

	batch, _ := o.sched.Tick()
	if batch.Kind != executor.BatchOrders || len(batch.Orders) != 1 {
		t.Fatalf("expected exactly one reduce-only order enqueued, got %+v", batch)
	}
	if batch.Orders[0].Side != domain.Sell {
		t.Fatalf("expected a sell to flatten a long, got %v", batch.Orders[0].Side)
	}
	if !batch.Orders[0].ReduceOnly {
		t.Fatal("expected the flatten order to be reduce-only")
	}
}

func TestTriggerStopSkipsAFlatPosition(t *testing.T) {
	o := newTestOrchestrator(t)
	key := domain.MarketKey{AssetIdx: 1}
	snap := domain.Snapshot{Key: key, HasBbo: true, HasOracle: true}

	o.triggerStop(key, snap)
	if batch, _ := o.sched.Tick(); batch.Kind != executor.BatchNone {
		t.Fatalf("expected no action for a flat position, got %+v", batch)
	}
}

func TestEvaluateMarketSkipsSubmitWhenNotReadyTrading(t *testing.T) {
	o := newTestOrchestrator(t)
	key := domain.MarketKey{AssetIdx: 1}
	spec := testSpec()
	o.specsCache.Seed("TEST", key, spec)
	o.marketParams[key] = detector.MarketParams{
		MaxNotional:        decimal.NewFromInt(100000),
		SizeAlpha:          decimal.NewFromFloat(0.10),
		EdgeBpsMin:         decimal.NewFromInt(5),
		MinBookNotional:    decimal.NewFromInt(1000),
		NormalBookNotional: decimal.NewFromInt(10000),
	}

	now := time.Now()
	o.agg.UpdateBbo(key, domain.BestBidOffer{
		Bid: domain.PriceFromFloat(99.90), BidSize: domain.NewSize(decimal.NewFromInt(50)),
		Ask: domain.PriceFromFloat(99.95), AskSize: domain.NewSize(decimal.NewFromInt(50)),
		ReceivedAt: now,
	})
	o.agg.UpdateCtx(key, domain.OracleCtx{OraclePrice: domain.PriceFromFloat(100.20), ReceivedAt: now})

	// A fresh test session is neither open nor READY-TRADING, which must
	// keep evaluateMarket from ever reaching Submit even though the
	// gates and detector would otherwise fire a signal here.
	o.evaluateMarket(key, false, false)

	batch, _ := o.sched.Tick()
	if batch.Kind != executor.BatchNone {
		t.Fatalf("expected no order submitted while the session is not READY-TRADING, got %+v", batch)
	}
}

func TestHandleFillUpdatesPositionAndDropsDuplicate(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.tracker.Run(ctx)

	key := domain.MarketKey{AssetIdx: 1}
	o.specsCache.Seed("xyz:TLT", key, testSpec())

	cloid := domain.NewClientOrderId()
	if err := o.tracker.Handle().TryRegisterOrder(domain.PendingOrder{Cloid: cloid, Key: key, Side: domain.Buy, Price: domain.PriceFromFloat(100)}); err != nil {
		t.Fatal(err)
	}

	o.handleFill(&wsclient.FillEvent{
		Coin:  "xyz:TLT",
		Side:  "B",
		Px:    "101",
		Sz:    "2",
		Cloid: cloid.String(),
		Ts:    time.Now().UnixMilli(),
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if pos, ok := o.tracker.Handle().Position(key); ok && pos.Size.Equal(decimal.NewFromInt(2)) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	pos, ok := o.tracker.Handle().Position(key)
	if !ok || !pos.Size.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected position size 2 after fill, got %+v, %v", pos, ok)
	}

	// A duplicate fill (same cloid) must be dropped by the dedup set.
	o.handleFill(&wsclient.FillEvent{Coin: "xyz:TLT", Side: "B", Px: "101", Sz: "2", Cloid: cloid.String(), Ts: time.Now().UnixMilli()})
	time.Sleep(10 * time.Millisecond)
	pos, _ = o.tracker.Handle().Position(key)
	if !pos.Size.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected duplicate fill to be ignored, position size now %s", pos.Size)
	}
}

func TestHandleFillIgnoresSnapshotReplay(t *testing.T) {
	o := newTestOrchestrator(t)
	key := domain.MarketKey{AssetIdx: 1}
	o.specsCache.Seed("xyz:TLT", key, testSpec())

	o.handleFill(&wsclient.FillEvent{Coin: "xyz:TLT", Side: "B", Px: "100", Sz: "1", IsSnapshot: true, Ts: time.Now().UnixMilli()})
	time.Sleep(10 * time.Millisecond)
	if _, ok := o.tracker.Handle().Position(key); ok {
		t.Fatal("expected a snapshot-replay fill to be ignored entirely")
	}
}
