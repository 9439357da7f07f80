package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/xresolve/internal/api"
	"github.com/iconidentify/xresolve/internal/api/handler"
	mw "github.com/iconidentify/xresolve/internal/api/middleware"
	"github.com/iconidentify/xresolve/internal/config"
	"github.com/iconidentify/xresolve/internal/ratelimit"
	"github.com/iconidentify/xresolve/internal/service"
	"github.com/iconidentify/xresolve/pkg/twitter"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xresolve %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting xresolve",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if lvl, err := cfg.Log.SlogLevel(); err == nil {
		level.Set(lvl)
	}

	// Rate counter store
	store, err := newCounterStore(cfg)
	if err != nil {
		logger.Error("failed to open rate counter store", "backend", cfg.RateLimit.Backend, "error", err)
		os.Exit(1)
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		// The rate limiter fails open, so an unreachable store is not fatal.
		logger.Warn("rate counter store unreachable", "backend", cfg.RateLimit.Backend, "error", err)
	}
	cancelPing()

	var governor mw.Admitter
	if cfg.RateLimit.Enabled {
		governor = ratelimit.NewGovernor(store, ratelimit.Config{
			Limit:     cfg.RateLimit.Limit,
			Window:    cfg.RateLimit.Window,
			MinTTL:    cfg.RateLimit.MinTTL,
			KeyPrefix: cfg.RateLimit.KeyPrefix,
		}, logger)
		logger.Info("rate limiting enabled",
			"backend", cfg.RateLimit.Backend,
			"limit", cfg.RateLimit.Limit,
			"window", cfg.RateLimit.Window,
		)
	}

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go ratelimit.RunSweeper(sweepCtx, store, cfg.RateLimit.SweepInterval, logger)

	// Upstream clients
	upstream := twitter.Config{
		TokenURL:       cfg.Upstream.TokenURL,
		GraphQLURL:     cfg.Upstream.GraphQLURL,
		SyndicationURL: cfg.Upstream.SyndicationURL,
		BearerToken:    cfg.Upstream.BearerToken,
		UserAgent:      cfg.Upstream.UserAgent,
		HTTPTimeout:    cfg.Upstream.HTTPTimeout,
	}
	client := twitter.NewClient(upstream, logger)

	var (
		tokens     twitter.TokenSource
		tokenClock handler.TokenClock
	)
	if cfg.Upstream.GuestToken != "" {
		logger.Info("using pinned guest token")
		tokens = &twitter.StaticTokenSource{TokenValue: cfg.Upstream.GuestToken}
	} else {
		guest := twitter.NewGuestTokenSource(upstream, logger)
		tokens = guest
		tokenClock = guest

		// SIGHUP drops the cached guest token
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		go func() {
			for range hup {
				logger.Info("received SIGHUP, dropping cached guest token")
				guest.Invalidate()
			}
		}()
	}

	// Initialize services
	resolverSvc := service.NewResolverService(tokens, client, logger)

	// Initialize handlers
	resolveHandler := handler.NewResolveHandler(resolverSvc, logger)
	healthHandler := handler.NewHealthHandler(store, tokenClock)

	// Setup router
	router := api.NewRouter(resolveHandler, healthHandler, governor, api.RouterConfig{
		APIKey:         cfg.Server.APIKey,
		ClientIPHeader: cfg.RateLimit.ClientIPHeader,
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustProxy:     cfg.Server.TrustProxy,
	}, logger)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Cancel background tasks
	cancelSweep()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := store.Close(); err != nil {
		logger.Error("rate counter store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// newCounterStore opens the configured rate counter backend. A disabled rate
// limit still gets an in-memory store so readiness has something to ping.
func newCounterStore(cfg *config.Config) (ratelimit.Store, error) {
	if !cfg.RateLimit.Enabled {
		return ratelimit.NewMemoryStore(), nil
	}
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		return ratelimit.NewRedisStore(ratelimit.RedisOptions{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		}), nil
	case config.BackendSQLite:
		return ratelimit.NewSQLiteStore(cfg.SQLite.Path)
	default:
		return ratelimit.NewMemoryStore(), nil
	}
}
