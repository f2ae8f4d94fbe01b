// Package core wires every subsystem (§4.1-4.13) into the single
// running process: the WS session, the market-state aggregator, the
// gate pipeline, the dislocation detector, the position tracker, the
// executor's queue/tick loop, the exit monitors, and the hard-stop risk
// monitor. Grounded on the teacher's internal/engine.Engine: a
// constructor that builds every collaborator up front, a Start that
// launches one goroutine per subsystem, and a Stop that cancels and
// waits for all of them to return.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
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
	"hyperdrift-taker/internal/signer"
	"hyperdrift-taker/internal/specs"
	"hyperdrift-taker/internal/wsclient"
	"hyperdrift-taker/pkg/domain"
)

// rediscoverInterval governs how often the REST discovery client is
// re-polled to refresh open interest and detect param/halt changes.
// There is no push channel for this on the exchange side; polling is
// the only option (§6).
const rediscoverInterval = 2 * time.Minute

// discoverTimeout bounds the preflight and periodic REST calls.
const discoverTimeout = 30 * time.Second

// Orchestrator owns every long-lived collaborator and the goroutines
// that drive them.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger

	hardStop *domain.HardStopLatch
	budget   *domain.ActionBudget

	signer executor.ActionSigner
	nonce  *signer.Manager

	rest       *restclient.Client
	dexIndex   uint32
	specsCache *specs.Cache
	discovery  *discoveryTracker

	marketParams map[domain.MarketKey]detector.MarketParams
	marketOiCap  map[domain.MarketKey]decimal.Decimal

	agg      *marketstate.Aggregator
	gatesEv  *gates.Evaluator
	det      *detector.Detector
	tracker  *position.Tracker
	execGate *executor.Gates
	sched    *executor.Scheduler
	submit   *executor.Submitter
	tickLoop *executor.TickLoop

	ws *wsclient.Session

	flattenBuilder *exits.FlattenOrderBuilder
	timeStop       *exits.TimeStopMonitor
	markRegression *exits.MarkRegressionMonitor

	riskMon *riskmonitor.Monitor
	trend   *trendTracker
	dedup   *fillDedup
	oids    *oidMap

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Orchestrator: it runs preflight REST discovery, seeds
// every configured market's spec and (if any) resting position, and
// constructs every collaborator. It does not start any goroutine; call
// Start for that.
func New(cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "core")

	hardStop := &domain.HardStopLatch{}
	budget := domain.NewActionBudget(cfg.Executor.MaxOrdersPerInterval, cfg.Executor.BudgetInterval)

	var actionSigner executor.ActionSigner
	if cfg.DryRun && cfg.Wallet.PrivateKey == "" {
		actionSigner = noopSigner{}
	} else {
		s, err := signer.New(cfg.Wallet.PrivateKey, cfg.Wallet.SignerAddress, cfg.IsMainnet)
		if err != nil {
			return nil, fmt.Errorf("build signer: %w", err)
		}
		actionSigner = s
	}
	nonceMgr := signer.NewManager(nil)

	rest := restclient.NewClient(cfg.REST.InfoURL, cfg.REST.Timeout, cfg.REST.DexName)
	specsCache := specs.NewCache()

	preflight, cancelPreflight := context.WithTimeout(context.Background(), discoverTimeout)
	defer cancelPreflight()

	dexIndex, err := rest.PerpDexs(preflight, cfg.REST.DexName)
	if err != nil {
		return nil, fmt.Errorf("perpDexs: %w", err)
	}
	infos, err := rest.Discover(preflight, dexIndex)
	if err != nil {
		return nil, fmt.Errorf("discover markets: %w", err)
	}
	byCoin := make(map[string]restclient.MarketInfo, len(infos))
	for _, info := range infos {
		byCoin[info.Coin] = info
	}

	marketParams := make(map[domain.MarketKey]detector.MarketParams, len(cfg.Markets))
	marketOiCap := make(map[domain.MarketKey]decimal.Decimal, len(cfg.Markets))
	configured := make([]restclient.MarketInfo, 0, len(cfg.Markets))
	for _, mc := range cfg.Markets {
		info, ok := byCoin[mc.Coin]
		if !ok {
			return nil, fmt.Errorf("configured market %q not found in exchange discovery for dex %q", mc.Coin, cfg.REST.DexName)
		}
		specsCache.Seed(info.Coin, info.Key, info.Spec)
		configured = append(configured, info)
		marketParams[info.Key] = detector.MarketParams{
			MaxNotional:           decimal.NewFromFloat(mc.MaxNotional),
			SizeAlpha:             decimal.NewFromFloat(mc.SizeAlpha),
			EdgeBpsMin:            decimal.NewFromFloat(mc.EdgeBpsMin),
			MinBookNotional:       decimal.NewFromFloat(mc.MinBookNotional),
			NormalBookNotional:    decimal.NewFromFloat(mc.NormalBookNotional),
			OracleDirectionFilter: mc.OracleDirectionFilter,
		}
		marketOiCap[info.Key] = decimal.NewFromFloat(mc.OiCap)
	}

	discovery := newDiscoveryTracker()
	discovery.Refresh(specsCache, configured)

	staleAfter := cfg.Gates.MaxBboAge
	if cfg.Gates.MaxCtxAge > staleAfter {
		staleAfter = cfg.Gates.MaxCtxAge
	}
	agg := marketstate.NewAggregator(staleAfter)

	gatesEv := gates.NewEvaluator(gates.Thresholds{
		MaxBboAge:        cfg.Gates.MaxBboAge,
		MaxCtxAge:        cfg.Gates.MaxCtxAge,
		MaxDivergenceBps: decimal.NewFromFloat(cfg.Gates.MaxDivergenceBps),
		SpreadShockK:     decimal.NewFromFloat(cfg.Gates.SpreadShockK),
		SpreadEwmaAlpha:  decimal.NewFromFloat(cfg.Gates.SpreadEwmaAlpha),
		MaxOiFraction:    decimal.NewFromFloat(cfg.Gates.MaxOiFraction),
	}, logger)

	det := detector.New(decimal.NewFromFloat(cfg.Detector.DefaultSlippageBps), logger)

	tracker := position.New(logger)
	handle := tracker.Handle()

	seedPositions := func(ctx context.Context) {
		seeds, err := rest.ClearinghouseState(ctx, cfg.Wallet.UserAddress)
		if err != nil {
			logger.Warn("clearinghouse snapshot fetch failed, starting flat", "error", err)
			return
		}
		for _, sp := range seeds {
			info, ok := byCoin[sp.Coin]
			if !ok {
				continue
			}
			size := sp.Size
			if sp.Side == domain.Sell {
				size = size.Neg()
			}
			tracker.SeedPosition(domain.Position{Key: info.Key, Size: size, EntryPrice: sp.EntryPrice})
		}
	}
	seedPositions(preflight)

	marks := newMarkPriceLookup(agg)
	execLimits := executor.Limits{
		MaxNotionalPerMarket:   decimal.NewFromFloat(cfg.Executor.MaxPositionPerMarket),
		MaxNotionalTotal:       decimal.NewFromFloat(cfg.Executor.MaxPositionTotal),
		MaxConcurrentPositions: cfg.Executor.MaxConcurrentPositions,
	}
	execGates := executor.NewGates(execLimits, hardStop, budget, handle, marks)

	schedInflight := domain.NewInflightTracker(cfg.WS.InflightCap)
	sched := executor.NewScheduler(cfg.Executor.NewOrderHighWatermark, schedInflight, hardStop)

	submitter := executor.NewSubmitter(execGates, sched, tracker, hardStop, logger)

	coins := make([]string, 0, len(configured))
	for _, info := range configured {
		coins = append(coins, info.Coin)
	}

	ws := wsclient.NewSession(wsclient.Config{
		URL:                cfg.WS.URL,
		HeartbeatInterval:  cfg.WS.HeartbeatInterval,
		HeartbeatTimeout:   cfg.WS.HeartbeatTimeout,
		InflightCap:        cfg.WS.InflightCap,
		OutboundRatePerMin: cfg.WS.OutboundRatePerMin,
		UserAddress:        cfg.Wallet.UserAddress,
		Resolver:           specsCache,
		Logger:             logger,
		HardStop:           hardStop,
	})
	ws.SetDesiredMarkets(coins)
	ws.SetOnReconnected(func(ctx context.Context) {
		reqCtx, cancel := context.WithTimeout(ctx, discoverTimeout)
		defer cancel()
		seedPositions(reqCtx)
		ws.MarkPositionSynced()
	})

	tickLoop := executor.NewTickLoop(executor.Config{
		Scheduler:    sched,
		Tracker:      tracker,
		Nonce:        nonceMgr,
		Signer:       actionSigner,
		Specs:        specsCache,
		Poster:       ws,
		VaultAddress: cfg.Wallet.VaultAddress,
		PostTimeout:  cfg.Executor.PostResponseTimeout,
		Logger:       logger,
	})

	flattenBuilder := exits.NewFlattenOrderBuilder(specsCache)
	timeStop := exits.NewTimeStopMonitor(handle, agg, sched, flattenBuilder, exits.TimeStopConfig{
		CheckInterval:     cfg.Exits.TimeStopCheckInterval,
		Threshold:         cfg.Exits.TimeStopThreshold,
		SlippageBps:       cfg.Exits.TimeStopSlippageBps,
		ReduceOnlyTimeout: cfg.Exits.ReduceOnlyTimeout,
	}, logger)
	markRegression := exits.NewMarkRegressionMonitor(handle, agg, sched, flattenBuilder, exits.MarkRegressionConfig{
		CheckInterval:    cfg.Exits.MarkRegressionCheckInterval,
		MinHoldingTime:   cfg.Exits.MarkRegressionMinHolding,
		ExitThresholdBps: cfg.Exits.MarkRegressionExitBps,
	}, cfg.Exits.TimeStopSlippageBps, logger)

	riskMon := riskmonitor.NewMonitor(cfg.RiskMon, hardStop, logger)

	return &Orchestrator{
		cfg:            cfg,
		logger:         logger,
		hardStop:       hardStop,
		budget:         budget,
		signer:         actionSigner,
		nonce:          nonceMgr,
		rest:           rest,
		dexIndex:       dexIndex,
		specsCache:     specsCache,
		discovery:      discovery,
		marketParams:   marketParams,
		marketOiCap:    marketOiCap,
		agg:            agg,
		gatesEv:        gatesEv,
		det:            det,
		tracker:        tracker,
		execGate:       execGates,
		sched:          sched,
		submit:         submitter,
		tickLoop:       tickLoop,
		ws:             ws,
		flattenBuilder: flattenBuilder,
		timeStop:       timeStop,
		markRegression: markRegression,
		riskMon:        riskMon,
		trend:          newTrendTracker(),
		dedup:          newFillDedup(0),
		oids:           newOidMap(),
	}, nil
}

// Start launches one goroutine per subsystem. It returns once every
// goroutine has been launched; it does not block for them to finish
// (call Stop, or have the caller block on a signal, for that).
func (o *Orchestrator) Start() {
	o.ctx, o.cancel = context.WithCancel(context.Background())

	o.spawn(func(ctx context.Context) { o.tracker.Run(ctx) })
	o.spawn(func(ctx context.Context) { _ = o.ws.Run(ctx) })
	o.spawn(func(ctx context.Context) { o.tickLoop.Run(ctx) })
	o.spawn(func(ctx context.Context) { o.timeStop.Run(ctx) })
	o.spawn(func(ctx context.Context) { o.markRegression.Run(ctx) })
	o.spawn(func(ctx context.Context) { o.riskMon.Run(ctx) })
	o.spawn(o.dispatchEvents)
	o.spawn(o.rediscoverLoop)

	o.logger.Info("taker started", "dex_index", o.dexIndex, "markets", len(o.marketParams))
}

func (o *Orchestrator) spawn(fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn(o.ctx)
	}()
}

// Stop cancels every subsystem's context and waits for all of them to
// return. It does not flatten open positions — an automatic
// flatten-on-shutdown was considered and rejected (§9): a restart
// should not itself be a trading signal.
func (o *Orchestrator) Stop() {
	if o.cancel == nil {
		return
	}
	o.cancel()
	o.wg.Wait()
	o.logger.Info("taker stopped")
}

// rediscoverLoop periodically refreshes open interest, active/halted
// status, and param-change detection from the REST discovery endpoint,
// since the WS activeAssetCtx stream carries oracle/mark prices only
// (§6).
func (o *Orchestrator) rediscoverLoop(ctx context.Context) {
	ticker := time.NewTicker(rediscoverInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.rediscoverOnce(ctx)
		}
	}
}

func (o *Orchestrator) rediscoverOnce(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()
	infos, err := o.rest.Discover(reqCtx, o.dexIndex)
	if err != nil {
		o.logger.Warn("periodic rediscovery failed", "error", err)
		return
	}
	configured := make([]restclient.MarketInfo, 0, len(o.marketParams))
	for _, info := range infos {
		if _, ok := o.marketParams[info.Key]; ok {
			configured = append(configured, info)
		}
	}
	o.discovery.Refresh(o.specsCache, configured)
}
