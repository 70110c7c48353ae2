// Betfair streaming cache core — a client library and demo binary for
// the Betfair Exchange Stream API: certificate login, a long-lived
// framed TCP/TLS connection with heartbeats and reconnect-with-resume,
// and a reconciled local mirror of market and order books.
//
// Architecture:
//
//	main.go                 — entry point: loads config, wires the pipeline, waits for SIGINT/SIGTERM
//	internal/auth           — certificate-login state machine, session token, keep-alive
//	internal/rpc            — HTTPS cert-login/keep-alive/logout client
//	internal/stream         — the TCP/TLS connection processor (C5)
//	internal/cache          — per-runner/per-market/per-order book caches (C6-C8)
//	internal/tracker        — top-level MCM/OCM dispatcher feeding the caches (C9)
//	internal/subscriber     — typed subscription + bounded fan-out (C10)
//	internal/monitor        — optional read-only debug WebSocket bridge
//	internal/metrics        — Prometheus counters/gauges
package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"betfair-streamcache/internal/auth"
	"betfair-streamcache/internal/config"
	"betfair-streamcache/internal/metrics"
	"betfair-streamcache/internal/monitor"
	"betfair-streamcache/internal/rpc"
	"betfair-streamcache/internal/stream"
	"betfair-streamcache/internal/subscriber"
	"betfair-streamcache/internal/tracker"
	"betfair-streamcache/pkg/types"
)

const keepAliveInterval = 4 * time.Hour

// subscriberHubBuffer matches the hub's own internal fan-out buffer so
// the dispatcher never becomes the slow reader ahead of the hub.
const subscriberHubBuffer = 3

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("BFX_CONFIG"); p != "" {
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

	logger := newLogger(cfg.Logging)

	cert, err := tls.LoadX509KeyPair(cfg.Identity.ClientCertPath, cfg.Identity.ClientKeyPath)
	if err != nil {
		logger.Error("failed to load client certificate", "error", err)
		os.Exit(1)
	}

	jurisdiction := parseJurisdiction(cfg.Identity.Jurisdiction)
	rpcClient := rpc.NewClient(jurisdiction, cert, cfg.Identity.ApplicationKey)

	creds := auth.Credentials{
		Username:       auth.NewSecret(cfg.Identity.Username),
		Password:       auth.NewSecret(cfg.Identity.Password),
		ApplicationKey: auth.NewSecret(cfg.Identity.ApplicationKey),
		ClientCert:     cert,
	}
	machine := auth.NewMachine(creds, rpcClient.Login, rpcClient.KeepAlive)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := machine.Login(ctx); err != nil {
		logger.Error("failed to log in", "error", err)
		os.Exit(1)
	}
	logger.Info("authenticated", "jurisdiction", cfg.Identity.Jurisdiction)

	go runKeepAlive(ctx, machine, logger)

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.New(cfg.Metrics.Namespace)
		go func() {
			logger.Info("metrics server listening", "addr", cfg.Metrics.Addr)
			if err := reg.ListenAndServe(cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	proc := stream.NewProcessor(stream.Config{
		Addr:              cfg.Stream.Addr,
		ServerName:        cfg.Stream.ServerName,
		AppKey:            cfg.Identity.ApplicationKey,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		DialTimeout:       cfg.Stream.DialTimeout,
		MinBackoff:        cfg.Resume.MinBackoff,
		MaxBackoff:        cfg.Resume.MaxBackoff,
		ChurnWindow:       cfg.Resume.ChurnWindow,
		ChurnThreshold:    cfg.Resume.ChurnThreshold,
		Logger:            logger,
		Metrics:           reg,
	}, machine.SessionToken)

	trk := tracker.New(logger, reg, func(err error) {
		logger.Warn("tracker: non-fatal cache error", "error", err)
	})

	hub := subscriber.New(proc, logger)

	marketFilter := &types.MarketFilter{
		MarketIDs:    cfg.Subscription.MarketIDs,
		EventTypeIDs: cfg.Subscription.EventTypeIDs,
		CountryCodes: cfg.Subscription.CountryCodes,
	}
	marketDataFilter := &types.MarketDataFilter{
		Fields: []types.MarketDataField{
			types.FieldExBestOffers,
			types.FieldExTraded,
			types.FieldExMarketDef,
			types.FieldSpProjected,
		},
	}
	if err := hub.SubscribeMarket(ctx, marketFilter, marketDataFilter); err != nil {
		logger.Error("failed to send market subscription", "error", err)
		os.Exit(1)
	}
	if cfg.Subscription.Orders {
		if err := hub.SubscribeOrders(ctx, &types.OrderFilter{}); err != nil {
			logger.Error("failed to send order subscription", "error", err)
			os.Exit(1)
		}
	}

	var bridge *monitor.Bridge
	if cfg.Monitor.Enabled {
		bridge = monitor.NewBridge(logger, allowedOriginChecker(cfg.Monitor.AllowedOrigins))
		mux := http.NewServeMux()
		mux.Handle("/stream", bridge)
		go func() {
			logger.Info("monitor bridge listening", "addr", cfg.Monitor.Addr)
			if err := http.ListenAndServe(cfg.Monitor.Addr, mux); err != nil {
				logger.Error("monitor server stopped", "error", err)
			}
		}()
		go bridge.Run(ctx.Done())
	}

	hubSnapshots := make(chan *tracker.Snapshot, subscriberHubBuffer)
	go hub.Run(ctx, hubSnapshots)
	go dispatchSnapshots(ctx, trk.Snapshots(), hubSnapshots, bridge)

	go func() {
		if err := trk.Run(ctx, proc.Events(), cfg.Cache.SweepInterval); err != nil && ctx.Err() == nil {
			logger.Error("tracker stopped", "error", err)
		}
	}()

	go func() {
		if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("stream processor stopped", "error", err)
		}
	}()

	logger.Info("streamcache started", "addr", cfg.Stream.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	machine.Logout()
}

// dispatchSnapshots is the single reader of the tracker's snapshot
// channel; it tees each snapshot out to the subscriber hub and, if
// enabled, the debug monitor bridge. A channel has exactly one logical
// reader in this pipeline so two independent consumers never split the
// stream between them.
func dispatchSnapshots(ctx context.Context, in <-chan *tracker.Snapshot, hubOut chan<- *tracker.Snapshot, bridge *monitor.Bridge) {
	defer close(hubOut)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-in:
			if !ok {
				return
			}
			if bridge != nil {
				bridge.Publish(snap)
			}
			select {
			case hubOut <- snap:
			case <-ctx.Done():
				return
			}
		}
	}
}

// runKeepAlive extends the current session with KeepAlive on a fixed
// external schedule; the auth state machine itself is cadence-agnostic.
func runKeepAlive(ctx context.Context, machine *auth.Machine, logger *slog.Logger) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := machine.KeepAlive(ctx); err != nil {
				logger.Warn("keep-alive failed", "error", err)
			}
		}
	}
}

func allowedOriginChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			if a == origin {
				return true
			}
		}
		return false
	}
}

func parseJurisdiction(s string) rpc.Jurisdiction {
	switch strings.ToLower(s) {
	case "italy", "it":
		return rpc.JurisdictionItaly
	case "spain", "es":
		return rpc.JurisdictionSpain
	case "romania", "ro":
		return rpc.JurisdictionRomania
	case "sweden", "se":
		return rpc.JurisdictionSweden
	default:
		return rpc.JurisdictionGlobal
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
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
