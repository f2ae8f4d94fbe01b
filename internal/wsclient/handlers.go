package wsclient

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"hyperdrift-taker/pkg/domain"
)

func (s *Session) handleSubscriptionResponse(data []byte) {
	var msg struct {
		Data SubscriptionResponseData `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("unmarshal subscriptionResponse", "error", err)
		return
	}
	if msg.Data.Error != "" {
		s.logger.Error("subscription ack error, fatal for session", "type", msg.Data.Subscription.Type, "error", msg.Data.Error)
		s.forceReconnect()
		return
	}
	switch msg.Data.Subscription.Type {
	case "orderUpdates":
		s.ready.setOrderUpdatesAcked()
	case "userFills":
		s.ready.setFillsAcked()
	}
	s.maybeReleaseHardStop()
}

func (s *Session) forceReconnect() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()
}

func (s *Session) handleBbo(data []byte) {
	var msg struct {
		Data BboWireEvent `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Error("unmarshal bbo event", "error", err)
		return
	}
	key, ok := s.resolveKey(msg.Data.Coin)
	if !ok {
		return
	}

	bidPx, bidSz, bidOK := parseLevel(msg.Data.Bbo[0])
	askPx, askSz, askOK := parseLevel(msg.Data.Bbo[1])
	bbo := domain.BestBidOffer{ReceivedAt: time.Now()}
	if bidOK {
		bbo.Bid = bidPx
		bbo.BidSize = bidSz
	}
	if askOK {
		bbo.Ask = askPx
		bbo.AskSize = askSz
	}

	s.ready.markBbo(key)
	s.maybeReleaseHardStop()
	s.emit(Event{Kind: EventBbo, Bbo: &BboEvent{Key: key, Bbo: bbo, ExchangeTS: msg.Data.Time}})
}

func parseLevel(lvl WireLevel) (domain.Price, domain.Size, bool) {
	if lvl.Px == "" || lvl.Sz == "" {
		return domain.Price{}, domain.Size{}, false
	}
	px, err := decimal.NewFromString(lvl.Px)
	if err != nil {
		return domain.Price{}, domain.Size{}, false
	}
	sz, err := decimal.NewFromString(lvl.Sz)
	if err != nil {
		return domain.Price{}, domain.Size{}, false
	}
	return domain.NewPrice(px), domain.NewSize(sz), true
}

func (s *Session) handleCtx(data []byte) {
	var msg struct {
		Data ActiveAssetCtxData `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Error("unmarshal activeAssetCtx event", "error", err)
		return
	}
	key, ok := s.resolveKey(msg.Data.Coin)
	if !ok {
		return
	}

	oracle, _ := decimal.NewFromString(msg.Data.Ctx.OraclePx)
	mark, _ := decimal.NewFromString(msg.Data.Ctx.MarkPx)

	ctx := domain.OracleCtx{
		OraclePrice: domain.NewPrice(oracle),
		MarkPrice:   domain.NewPrice(mark),
		ReceivedAt:  time.Now(),
	}

	s.ready.markCtx(key)
	s.maybeReleaseHardStop()
	s.emit(Event{Kind: EventCtx, Ctx: &CtxEvent{Key: key, Ctx: ctx}})
}

func (s *Session) resolveKey(coin string) (domain.MarketKey, bool) {
	if s.resolver == nil {
		return domain.MarketKey{}, false
	}
	return s.resolver.ResolveKey(coin)
}

func (s *Session) handleOrderUpdates(data []byte) {
	var msg struct {
		Data []OrderUpdateWire `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Error("unmarshal orderUpdates event", "error", err)
		return
	}
	for _, u := range msg.Data {
		s.emit(Event{Kind: EventOrderUpdate, OrderUpdate: &OrderUpdateEvent{
			Cloid:  u.Order.Cloid,
			Oid:    u.Order.Oid,
			Status: u.Status,
			Ts:     u.StatusTimestamp,
		}})
	}
}

func (s *Session) handleUserFills(data []byte) {
	var msg struct {
		Data UserFillsData `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Error("unmarshal userFills event", "error", err)
		return
	}
	for _, f := range msg.Data.Fills {
		s.emit(Event{Kind: EventFill, Fill: &FillEvent{
			Coin:       f.Coin,
			Side:       f.Side,
			Px:         f.Px,
			Sz:         f.Sz,
			Oid:        f.Oid,
			Cloid:      f.Cloid,
			Ts:         f.Time,
			IsSnapshot: msg.Data.IsSnapshot,
		}})
	}
}

func (s *Session) handlePostResponse(data []byte) {
	var msg struct {
		Data PostResponseData `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Error("unmarshal post response", "error", err)
		return
	}

	s.outstandingMu.Lock()
	_, wasOutstanding := s.outstanding[msg.Data.ID]
	delete(s.outstanding, msg.Data.ID)
	s.outstandingMu.Unlock()
	if wasOutstanding {
		s.inflight.Release()
	}

	evt := &PostResponseEvent{ID: msg.Data.ID}
	if msg.Data.Response.Type == "error" {
		evt.Ok = false
		if reason, ok := msg.Data.Response.Payload.(string); ok {
			evt.Reason = reason
		}
	} else {
		evt.Ok = true
		evt.Payload = msg.Data.Response.Payload
	}
	s.emit(Event{Kind: EventPostResponse, PostResponse: evt})
}
