package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/internal/gates"
	"hyperdrift-taker/internal/position"
	"hyperdrift-taker/internal/riskmonitor"
	"hyperdrift-taker/internal/wsclient"
	"hyperdrift-taker/pkg/domain"
)

var tenThousand = decimal.NewFromInt(10000)

// dispatchEvents drains the WS session's event stream and routes each
// event to the collaborator that owns it: market-data events feed the
// aggregator and (if the gates clear) the detector/submitter chain;
// order lifecycle events feed the position tracker and the risk
// monitor; post responses feed the tick loop's pending-request table.
func (o *Orchestrator) dispatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.ws.Events():
			if !ok {
				return
			}
			o.handleEvent(ev)
		}
	}
}

func (o *Orchestrator) handleEvent(ev wsclient.Event) {
	switch ev.Kind {
	case wsclient.EventBbo:
		regression := o.agg.UpdateBbo(ev.Bbo.Key, ev.Bbo.Bbo)
		o.evaluateMarket(ev.Bbo.Key, regression, false)
	case wsclient.EventCtx:
		regression := o.agg.UpdateCtx(ev.Ctx.Key, ev.Ctx.Ctx)
		o.trend.Observe(ev.Ctx.Key, ev.Ctx.Ctx.OraclePrice.Decimal)
		o.evaluateMarket(ev.Ctx.Key, false, regression)
	case wsclient.EventOrderUpdate:
		o.handleOrderUpdate(ev.OrderUpdate)
	case wsclient.EventFill:
		o.handleFill(ev.Fill)
	case wsclient.EventPostResponse:
		o.tickLoop.OnPostResponse(*ev.PostResponse)
	}
}

// evaluateMarket runs the gate pipeline and, if it clears (or only asks
// for a reduced size), the detector and submitter for one market. Only
// configured markets are evaluated — an unconfigured coin's market data
// is never subscribed to in the first place, but the guard is cheap
// insurance against a stale resolver entry.
func (o *Orchestrator) evaluateMarket(key domain.MarketKey, bboRegression, ctxRegression bool) {
	params, ok := o.marketParams[key]
	if !ok {
		return
	}
	spec, ok := o.specsCache.Spec(key)
	if !ok {
		return
	}
	snap, ok := o.agg.GetSnapshot(key, time.Now())
	if !ok {
		return
	}

	isHolding := false
	if pos, ok := o.tracker.Handle().Position(key); ok {
		isHolding = !pos.IsFlat()
	}

	verdict := o.gatesEv.Evaluate(key, gates.Input{
		Now:           time.Now(),
		Snapshot:      snap,
		BboRegression: bboRegression,
		CtxRegression: ctxRegression,
		Spec:          spec,
		ParamChanged:  o.discovery.ParamChanged(key),
		Halted:        o.discovery.Halted(key),
		OpenInterest:  o.discovery.OpenInterest(key),
		OiCap:         o.marketOiCap[key],
		IsHolding:     isHolding,
	})

	if verdict.Kind == gates.Block {
		if verdict.CancelAll {
			o.cancelAllForMarket(key)
		}
		return
	}

	if verdict.StopMarket {
		o.triggerStop(key, snap)
		return
	}

	trend := o.trend.Last(key)
	sig, ok := o.det.Evaluate(snap, spec, params, spec.TakerFeeBps, trend, snap.Oracle.ReceivedAt.UnixMilli())
	if !ok {
		return
	}

	if verdict.Kind == gates.ReduceSize && !verdict.Factor.IsZero() {
		scaled := sig.SuggestedSize.Decimal.Mul(verdict.Factor)
		sig.SuggestedSize = domain.NewSize(scaled).Floor(spec)
		if sig.SuggestedSize.IsZero() {
			return
		}
	}

	if !o.ws.ReadyTrading() {
		return
	}

	if err := o.submit.Submit(sig, domain.TifIoc); err != nil {
		o.logger.Warn("signal submit rejected", "market", key.String(), "error", err)
	}
}

// cancelAllForMarket enqueues a cancel for every resting order this
// process knows about in key, addressed by the exchange-assigned oid
// the order-update stream reported for each cloid. An order whose oid
// has not yet been observed cannot be cancelled by id and is left to
// resolve on its own (it is IOC, so it does not rest long).
func (o *Orchestrator) cancelAllForMarket(key domain.MarketKey) {
	for _, order := range o.tracker.Handle().AllPendingOrders() {
		if order.Key != key {
			continue
		}
		oid, ok := o.oids.Lookup(order.Cloid)
		if !ok {
			continue
		}
		o.sched.EnqueueCancel(domain.PendingCancel{Key: key, Oid: oid, SubmittedAt: time.Now()})
	}
}

// triggerStop flattens a held position via the same reduce-only path
// the exit monitors use, for ParamChange/Halt's holding branch (§4.3
// #7, #8): reduce new exposure and get out, rather than wait for the
// next periodic exit sweep.
func (o *Orchestrator) triggerStop(key domain.MarketKey, snap domain.Snapshot) {
	pos, ok := o.tracker.Handle().Position(key)
	if !ok || pos.IsFlat() {
		return
	}
	order, ok := o.flattenBuilder.Build(pos, snap, decimal.NewFromFloat(o.cfg.Exits.TimeStopSlippageBps), time.Now())
	if !ok {
		return
	}
	if o.sched.EnqueueReduceOnly(order) {
		o.logger.Warn("gate-triggered stop enqueued", "market", key.String())
	}
}

func (o *Orchestrator) handleOrderUpdate(ev *wsclient.OrderUpdateEvent) {
	cloid, err := domain.ParseClientOrderId(ev.Cloid)
	if err != nil {
		o.logger.Warn("order update carried unparseable cloid", "cloid", ev.Cloid, "error", err)
		return
	}
	o.oids.Observe(cloid, ev.Oid)

	state, ok := normalizeOrderState(ev.Status)
	if !ok {
		o.logger.Warn("order update carried unrecognized status", "status", ev.Status)
		return
	}

	order, known := o.tracker.Handle().PendingOrder(cloid)
	market := domain.MarketKey{}
	if known {
		market = order.Key
	}
	ts := time.UnixMilli(ev.Ts)

	o.tracker.Handle().TrySend(position.Message{
		Kind:   position.OrderUpdate,
		Cloid:  cloid,
		Market: market,
		Status: state,
		Ts:     ts,
	})

	if state == domain.OrderRejected {
		o.riskMon.Report(riskmonitor.Event{Kind: riskmonitor.OrderRejected, Market: market, Ts: ts})
		if known && order.ReduceOnly {
			o.riskMon.Report(riskmonitor.Event{Kind: riskmonitor.FlattenFailed, Market: market, Ts: ts})
		}
	}
	if state.IsTerminal() {
		o.oids.Forget(cloid)
	}
}

func (o *Orchestrator) handleFill(ev *wsclient.FillEvent) {
	if ev.IsSnapshot {
		return
	}

	var cloid domain.ClientOrderId
	if ev.Cloid != "" {
		if c, err := domain.ParseClientOrderId(ev.Cloid); err == nil {
			cloid = c
		}
	}
	if o.dedup.Seen(cloid) {
		return
	}

	key, ok := o.specsCache.ResolveKey(ev.Coin)
	if !ok {
		return
	}

	side := sideFromWire(ev.Side)
	price := parseDecimal(ev.Px)
	size := parseDecimal(ev.Sz)
	ts := time.UnixMilli(ev.Ts)

	handle := o.tracker.Handle()
	current, ok := handle.Position(key)
	if !ok {
		current = domain.Position{Key: key}
	}
	_, pnlDelta := current.ApplyFill(side, size, price)

	var slippageBps decimal.Decimal
	if order, ok := handle.PendingOrder(cloid); ok && !order.Price.Decimal.IsZero() {
		diff := price.Sub(order.Price.Decimal)
		if side == domain.Sell {
			diff = diff.Neg()
		}
		slippageBps = diff.Div(order.Price.Decimal).Mul(tenThousand)
	}

	handle.TrySend(position.Message{
		Kind:      position.Fill,
		Cloid:     cloid,
		Market:    key,
		Ts:        ts,
		FillSide:  side,
		FillPrice: price,
		FillSize:  size,
	})

	o.riskMon.Report(riskmonitor.Event{Kind: riskmonitor.OrderFilled, Market: key, Ts: ts, RealizedPnl: pnlDelta})
	if !slippageBps.IsZero() {
		o.riskMon.Report(riskmonitor.Event{Kind: riskmonitor.SlippageMeasured, Market: key, Ts: ts, SlippageBps: slippageBps})
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}
	}
	return d
}
