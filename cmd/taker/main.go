// Hyperdrift Taker — an automated taker bot for Hyperliquid HIP-3
// perpetual markets that trades the dislocation between a market's
// oracle price and its best bid/ask.
//
// Architecture:
//
//	main.go                    — entry point: loads config, starts the orchestrator, waits for SIGINT/SIGTERM
//	core/orchestrator.go       — orchestrator: wires the WS session, aggregator, gates, detector, executor, exits, and risk monitor
//	core/dispatch.go           — routes every WS event to the collaborator that owns it
//	wsclient/session.go        — WebSocket session (market data + user fills/orders) with heartbeat and reconnect
//	marketstate/aggregator.go — local bbo/oracle snapshot store, classified fresh/stale/null
//	gates/evaluator.go         — eight-gate pre-trade risk pipeline
//	detector/detector.go       — crossed-book dislocation signal detector
//	executor/                  — admission gates, the action-priority scheduler, and the sign/post tick loop
//	position/actor.go          — single-writer position tracker reconciling REST seed against the WS fill stream
//	exits/                     — time-stop and mark-regression exit monitors
//	riskmonitor/monitor.go     — hard-stop latch tripped by cumulative loss, rejection rate, or flatten failures
//	restclient/                — REST client for Hyperliquid's info endpoints (discovery + clearinghouse snapshot)
//
// How it makes money:
//
//	A HIP-3 deployer's oracle price can lag or diverge from the book's
//	own mark price, especially right after a funding update or a thin
//	print. This bot watches for the best bid or ask crossing the oracle
//	price, and crosses the book with an IOC taker order whenever the edge (net of
//	the venue's taker fee and an estimated slippage buffer) clears a
//	configured minimum. It never posts resting quotes — position risk
//	is bounded by the exit monitors and the hard-stop latch, not by a
//	spread it controls itself.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hyperdrift-taker/internal/config"
	"hyperdrift-taker/internal/core"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TAKER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	orch, err := core.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	orch.Start()
	logger.Info("taker running", "dry_run", cfg.DryRun, "markets", len(cfg.Markets))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	orch.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
