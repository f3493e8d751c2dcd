package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/merchant-engine/internal/api"
	"github.com/atmx/merchant-engine/internal/config"
	"github.com/atmx/merchant-engine/internal/engine"
	"github.com/atmx/merchant-engine/internal/ledger"
	"github.com/atmx/merchant-engine/internal/session"
	"github.com/atmx/merchant-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	// --- Stats cache ---
	var cache store.StatsCache
	var cleanup []func()

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })

		// Keys are scoped to this process's session.
		ns := uuid.NewString()
		cache = store.NewRedisCache(rdb, cfg.StatsCacheTTL, ns)
		slog.Info("Redis stats cache enabled", "namespace", ns)
	} else {
		cache = store.NewMemoryCache()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Session ---
	game, err := session.New(session.Config{
		Catalog: cfg.Catalog,
		Seed:    cfg.Seed,
		Ledger: ledger.Config{
			StartingCash: cfg.StartingCash,
			CostOfLiving: cfg.CostOfLiving,
			Strict:       cfg.StrictInvariants,
		},
		Start: cfg.StartDate,
		Speed: cfg.StartSpeed,
		Cache: cache,
	})
	if err != nil {
		slog.Error("session setup failed", "err", err)
		os.Exit(1)
	}
	defer game.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run(ctx)
	events, unsubscribe := game.Subscribe()
	defer unsubscribe()
	go wsHub.Forward(ctx, events)

	// --- Simulation loop ---
	eng := engine.New(game, cfg.FrameInterval)
	go func() {
		if err := eng.Run(ctx); err != nil {
			slog.Error("engine stopped", "err", err)
		}
	}()

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(api.NewService(game), wsHub),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("merchant-engine listening", "port", cfg.Port, "speed", cfg.StartSpeed.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down merchant-engine...")
	eng.Stop()
	stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("merchant-engine stopped")
}
