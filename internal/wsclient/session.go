// Package wsclient owns the single upstream WebSocket connection to the
// Hyperliquid API: subscription lifecycle, heartbeat, reconnection,
// rate/inflight accounting, and the ACK-driven READY state machine
// (§4.1). It generalizes the teacher's dual market/user WSFeed into one
// multiplexed session carrying both market-data and user-stream
// subscriptions.
package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"hyperdrift-taker/pkg/domain"
)

const (
	writeTimeout     = 10 * time.Second
	maxReconnectWait = 60 * time.Second
	reconnectBase    = 1 * time.Second
	inboundQueueSize = 1024

	// reconnectHardStopReason is the HardStopLatch reason this session
	// trips on its own reconnects; only a latch still carrying this
	// exact reason is released once READY re-latches, so a hard-stop
	// tripped independently by the risk monitor is never clobbered.
	reconnectHardStopReason = "websocket session reconnecting"
)

// PostResult is the admission-control result of Post.
type PostResult int

const (
	Accepted PostResult = iota
	NotReady
	RateLimited
	ChannelClosed
)

func (r PostResult) String() string {
	switch r {
	case Accepted:
		return "Accepted"
	case NotReady:
		return "NotReady"
	case RateLimited:
		return "RateLimited"
	case ChannelClosed:
		return "ChannelClosed"
	default:
		return "Unknown"
	}
}

// Event is what the session emits to consumers: a parsed channel
// message or a liveness pong.
type Event struct {
	Kind EventKind
	// One of these is populated depending on Kind.
	Bbo          *BboEvent
	Ctx          *CtxEvent
	OrderUpdate  *OrderUpdateEvent
	Fill         *FillEvent
	PostResponse *PostResponseEvent
}

type EventKind int

const (
	EventBbo EventKind = iota
	EventCtx
	EventOrderUpdate
	EventFill
	EventPostResponse
	EventPong
)

// BboEvent is a parsed bbo channel update.
type BboEvent struct {
	Key        domain.MarketKey
	Bbo        domain.BestBidOffer
	ExchangeTS int64
}

// CtxEvent is a parsed activeAssetCtx channel update.
type CtxEvent struct {
	Key   domain.MarketKey
	Ctx   domain.OracleCtx
}

// OrderUpdateEvent carries a normalized order lifecycle update.
type OrderUpdateEvent struct {
	Cloid  string
	Oid    uint64
	Status string
	Ts     int64
}

// FillEvent carries a normalized fill.
type FillEvent struct {
	Coin  string
	Side  string
	Px    string
	Sz    string
	Oid   uint64
	Cloid string
	Ts    int64
	IsSnapshot bool
}

// PostResponseEvent correlates a post response back to its post_id for
// the executor tick loop's pending-request table.
type PostResponseEvent struct {
	ID      uint64
	Ok      bool
	Payload any
	Reason  string
}

// CoinResolver maps a wire coin string to its MarketKey; the session
// itself carries no spec-cache logic (that lives in internal/specs).
type CoinResolver interface {
	ResolveKey(coin string) (domain.MarketKey, bool)
	ResolveCoin(key domain.MarketKey) (string, bool)
}

// Session owns one WebSocket connection.
type Session struct {
	url      string
	resolver CoinResolver
	logger   *slog.Logger

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	connMu sync.Mutex
	conn   *websocket.Conn
	open   bool

	lastSent     atomicTime
	lastReceived atomicTime

	rate        *tokenBucket
	inflight    *domain.InflightTracker
	inflightCap int

	outstandingMu sync.Mutex
	outstanding   map[uint64]struct{}

	ready *readyState

	userAddress string
	hardStop    *domain.HardStopLatch
	selfTripped atomic.Bool

	events chan Event

	nextPostID uint64
	postIDMu   sync.Mutex

	desiredMarketsMu sync.Mutex
	desiredMarkets   []string // coin strings

	reconnectAttempt int

	// onReconnected, if set, runs in its own goroutine after every
	// successful (re)connect and resubscribe — the "optionally fetch
	// REST snapshots" step of the reconnect policy, which needs a fresh
	// clearinghouse read to re-satisfy the position-synced conjunct
	// reset() just cleared.
	onReconnected func(ctx context.Context)
}

// Config bundles the Session's construction parameters.
type Config struct {
	URL                string
	HeartbeatInterval  time.Duration
	HeartbeatTimeout   time.Duration
	InflightCap        int
	OutboundRatePerMin int
	UserAddress        string
	Resolver           CoinResolver
	Logger             *slog.Logger
	// HardStop, if set, is raised on every reconnect (when UserAddress is
	// set — an observation-only session has no orders to block) and
	// released once READY-TRADING re-latches, per the reconnect policy.
	HardStop *domain.HardStopLatch
}

// NewSession builds a Session. Call Run to drive the connection.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		url:               cfg.URL,
		resolver:          cfg.Resolver,
		logger:            logger.With("component", "ws_session"),
		heartbeatInterval: cfg.HeartbeatInterval,
		heartbeatTimeout:  cfg.HeartbeatTimeout,
		rate:              newTokenBucket(cfg.OutboundRatePerMin, cfg.OutboundRatePerMin),
		inflight:          domain.NewInflightTracker(cfg.InflightCap),
		inflightCap:       cfg.InflightCap,
		outstanding:       make(map[uint64]struct{}),
		ready:             newReadyState(),
		userAddress:       cfg.UserAddress,
		hardStop:          cfg.HardStop,
		events:            make(chan Event, inboundQueueSize),
	}
}

// Events returns the read-only event stream consumers drain.
func (s *Session) Events() <-chan Event { return s.events }

// SetOnReconnected registers a callback run after every successful
// (re)connect and resubscribe. Used by the orchestrator to re-fetch the
// REST clearinghouse snapshot and re-report it via MarkPositionSynced,
// since a reconnect's reset() clears that conjunct along with the rest.
func (s *Session) SetOnReconnected(fn func(ctx context.Context)) {
	s.onReconnected = fn
}

// SetDesiredMarkets replaces the coin set the session subscribes bbo
// and activeAssetCtx to. Takes effect on the next (re)connect and, if
// currently connected, is diffed and applied immediately.
func (s *Session) SetDesiredMarkets(coins []string) {
	s.desiredMarketsMu.Lock()
	s.desiredMarkets = append([]string(nil), coins...)
	s.desiredMarketsMu.Unlock()

	keys := make([]domain.MarketKey, 0, len(coins))
	if s.resolver != nil {
		for _, c := range coins {
			if k, ok := s.resolver.ResolveKey(c); ok {
				keys = append(keys, k)
			}
		}
	}
	s.ready.setDesiredMarkets(keys)
}

// ReadyObservationOnly reports whether market data alone is ready.
func (s *Session) ReadyObservationOnly() bool { return s.ready.readyObservationOnly() }

// ReadyTrading reports the full READY-TRADING conjunction minus the
// hard-stop conjunct, which the caller evaluates.
func (s *Session) ReadyTrading() bool {
	return s.isOpen() && s.ready.readyTrading()
}

func (s *Session) isOpen() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.open
}

// Run connects and maintains the connection with full-jitter exponential
// backoff reconnection. Blocks until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	for {
		err := s.connectAndServe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("websocket disconnected, reconnecting", "error", err, "attempt", s.reconnectAttempt)
		s.onDisconnect()

		delay := backoffDelay(s.reconnectAttempt)
		s.reconnectAttempt++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoffDelay computes full-jitter exponential backoff:
// min(base * 2^attempt + rand[0,1000)ms, 60s).
func backoffDelay(attempt int) time.Duration {
	d := reconnectBase * time.Duration(1<<uint(min(attempt, 20)))
	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	total := d + jitter
	if total > maxReconnectWait {
		total = maxReconnectWait
	}
	return total
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (s *Session) onDisconnect() {
	s.connMu.Lock()
	s.open = false
	s.conn = nil
	s.connMu.Unlock()

	s.ready.reset()

	s.outstandingMu.Lock()
	s.outstanding = make(map[uint64]struct{})
	s.outstandingMu.Unlock()
	s.inflight = domain.NewInflightTracker(s.inflightCap)

	// Raise the hard-stop for a trading session so the executor cannot
	// submit while this session is reconnecting and resyncing; an
	// observation-only session (no userAddress) has nothing to block.
	if s.hardStop != nil && s.userAddress != "" {
		if s.hardStop.Trip(reconnectHardStopReason) {
			s.selfTripped.Store(true)
		}
	}
}

// maybeReleaseHardStop releases the hard-stop this session tripped on
// reconnect once READY-TRADING has re-latched. It never touches a latch
// tripped for a different reason (e.g. by the risk monitor).
func (s *Session) maybeReleaseHardStop() {
	if s.hardStop == nil || !s.selfTripped.Load() {
		return
	}
	if !s.ReadyTrading() {
		return
	}
	if s.hardStop.Reason() == reconnectHardStopReason {
		s.hardStop.Release()
	}
	s.selfTripped.Store(false)
}

// MarkPositionSynced records that the out-of-band REST clearinghouse
// seed has completed, the fourth and last READY-TRADING conjunct, and
// releases this session's own reconnect hard-stop if that now completes
// the conjunction.
func (s *Session) MarkPositionSynced() {
	s.ready.setPositionSynced()
	s.maybeReleaseHardStop()
}

func (s *Session) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.open = true
	s.connMu.Unlock()
	s.reconnectAttempt = 0

	defer func() {
		s.connMu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.conn = nil
		s.open = false
		s.connMu.Unlock()
	}()

	if err := s.resubscribeAll(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}

	s.logger.Info("websocket connected")

	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.heartbeatLoop(heartbeatCtx)

	if s.onReconnected != nil {
		go s.onReconnected(heartbeatCtx)
	}

	// Unblocks the read loop on cancellation by closing the connection;
	// the read loop then observes ctx.Err() and returns cleanly.
	go func() {
		<-ctx.Done()
		s.connMu.Lock()
		if s.conn != nil {
			deadline := time.Now().Add(5 * time.Second)
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			s.conn.Close()
		}
		s.connMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.lastReceived.set(time.Now())
		s.dispatch(msg)
	}
}

func (s *Session) resubscribeAll() error {
	s.desiredMarketsMu.Lock()
	coins := append([]string(nil), s.desiredMarkets...)
	s.desiredMarketsMu.Unlock()

	for _, coin := range coins {
		if err := s.sendSubscribe(Subscription{Type: "bbo", Coin: coin}); err != nil {
			return err
		}
		if err := s.sendSubscribe(Subscription{Type: "activeAssetCtx", Coin: coin}); err != nil {
			return err
		}
	}
	if s.userAddress != "" {
		if err := s.sendSubscribe(Subscription{Type: "orderUpdates", User: s.userAddress}); err != nil {
			return err
		}
		if err := s.sendSubscribe(Subscription{Type: "userFills", User: s.userAddress}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) sendSubscribe(sub Subscription) error {
	return s.writeJSON(SubscribeFrame{Method: "subscribe", Subscription: sub})
}

func (s *Session) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeatInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if now.Sub(s.lastSent.get()) >= s.heartbeatInterval {
				if err := s.writeMessage(websocket.PingMessage, nil); err != nil {
					s.logger.Warn("heartbeat ping failed", "error", err)
					return
				}
			}
			if now.Sub(s.lastReceived.get()) > s.heartbeatTimeout {
				s.logger.Warn("no inbound frame within heartbeat timeout, forcing reconnect")
				s.connMu.Lock()
				if s.conn != nil {
					s.conn.Close()
				}
				s.connMu.Unlock()
				return
			}
		}
	}
}

func (s *Session) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := s.conn.WriteJSON(v)
	if err == nil {
		s.lastSent.set(time.Now())
	}
	return err
}

func (s *Session) writeMessage(msgType int, data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := s.conn.WriteMessage(msgType, data)
	if err == nil {
		s.lastSent.set(time.Now())
	}
	return err
}

// Post attempts to enqueue a signed action or info request. The inflight
// slot is acquired only on a successful write, and released on the
// matching post response, a caller-driven ReleaseInflight (timeout), or
// socket teardown.
func (s *Session) Post(payload PostRequest) (PostResult, uint64, error) {
	if !s.isOpen() {
		return ChannelClosed, 0, nil
	}
	if !s.rate.tryTake() {
		return RateLimited, 0, nil
	}
	if !s.inflight.TryAcquire() {
		return RateLimited, 0, nil
	}

	id := s.nextID()
	frame := PostFrame{Method: "post", ID: id, Request: payload}
	if err := s.writeJSON(frame); err != nil {
		s.inflight.Release()
		return ChannelClosed, 0, err
	}

	s.outstandingMu.Lock()
	s.outstanding[id] = struct{}{}
	s.outstandingMu.Unlock()

	return Accepted, id, nil
}

// SendText sends a raw subscribe frame as text, bypassing the post
// admission path (subscriptions are not rate/inflight accounted).
func (s *Session) SendText(raw []byte) error {
	return s.writeMessage(websocket.TextMessage, raw)
}

// ReleaseInflight decrements the inflight count for a post_id whose
// response will never arrive (correlation timeout). A no-op if the id
// is not outstanding (already resolved).
func (s *Session) ReleaseInflight(postID uint64) {
	s.outstandingMu.Lock()
	_, ok := s.outstanding[postID]
	if ok {
		delete(s.outstanding, postID)
	}
	s.outstandingMu.Unlock()
	if ok {
		s.inflight.Release()
	}
}

func (s *Session) nextID() uint64 {
	s.postIDMu.Lock()
	defer s.postIDMu.Unlock()
	s.nextPostID++
	return s.nextPostID
}

// dispatch peeks the channel field and routes to a typed decoder. Parse
// errors on individual frames are logged and skipped, never fatal.
func (s *Session) dispatch(data []byte) {
	var env channelEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Debug("ignoring non-json ws message", "error", err)
		return
	}

	switch env.Channel {
	case "subscriptionResponse":
		s.handleSubscriptionResponse(data)
	case "bbo":
		s.handleBbo(data)
	case "activeAssetCtx":
		s.handleCtx(data)
	case "orderUpdates":
		s.handleOrderUpdates(data)
	case "userFills":
		s.handleUserFills(data)
	case "post":
		s.handlePostResponse(data)
	case "pong":
		s.emit(Event{Kind: EventPong})
	default:
		s.logger.Debug("unhandled ws channel", "channel", env.Channel)
	}
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.logger.Warn("event queue full, dropping event", "kind", e.Kind)
	}
}
