package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/npezzotti/chat-relay/internal/analytics"
	"github.com/npezzotti/chat-relay/internal/api"
	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/config"
	"github.com/npezzotti/chat-relay/internal/database"
	"github.com/npezzotti/chat-relay/internal/livepush"
	"github.com/npezzotti/chat-relay/internal/platform"
	"github.com/npezzotti/chat-relay/internal/relay"
	"github.com/npezzotti/chat-relay/internal/stats"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// a .env file is optional; the real environment always wins
	godotenv.Load()

	logger := log.New(os.Stderr, "[chat-relay] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config: ", err)
	}

	db, err := database.NewPgRelayRepository(cfg.StoreURL, cfg.StorePoolSize, cfg.StorePoolOverflow)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	// migrations run before any traffic is accepted
	if err := db.Migrate(); err != nil {
		logger.Fatal("migrate: ", err)
	}

	adminHash, err := api.HashPassword(cfg.AdminPassword)
	if err != nil {
		logger.Fatal("hash admin password: ", err)
	}
	if _, err := db.UpsertAdmin(cfg.AdminUsername, adminHash, true); err != nil {
		logger.Fatal("seed admin user: ", err)
	}

	relayCache, err := cache.NewRedisCache(logger, cfg.CacheURL, cfg.CachePoolMax)
	if err != nil {
		logger.Fatal("cache: ", err)
	}
	defer relayCache.Close()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	gateway, err := platform.NewDiscordGateway(logger, cfg.PlatformToken)
	if err != nil {
		logger.Fatal("gateway: ", err)
	}

	logWriter := database.NewLogWriter(logger, db)
	logWriter.Run()

	resolver := relay.NewResolver(logger, relayCache, db)
	limiter := relay.NewRateLimiter(logger, relayCache)
	filter := relay.NewContentFilter(nil)
	replies := relay.NewReplyResolver(logger, gateway, db)
	fanout := relay.NewEngine(logger, gateway, db, relayCache, statsUpdater,
		cfg.FanoutRetryMax, cfg.FanoutPerRoomConcurrency)

	coordinator := relay.NewCoordinator(logger, resolver, limiter, filter, replies,
		fanout, logWriter, db, relayCache, gateway, statsUpdater)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator.Run(ctx)

	hub := livepush.NewHub(logger, relayCache, statsUpdater, cfg.SecretKey, cfg.AllowedOrigins)
	go hub.Run(ctx)

	analyticsSvc := analytics.NewService(logger, db, relayCache)
	if err := analyticsSvc.Start(); err != nil {
		logger.Fatal("analytics: ", err)
	}

	srv := api.NewAdminApp(mux, logger, db, relayCache, analyticsSvc,
		http.HandlerFunc(hub.ServeWS), cfg)

	if err := gateway.Open(); err != nil {
		logger.Fatal("gateway open: ", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// stop new events first, then drain the pipeline
	if err := gateway.Close(); err != nil {
		logger.Println("gateway close:", err)
	}

	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		logger.Println("coordinator shutdown:", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down live push hub...")
	hub.Shutdown()

	analyticsSvc.Stop()

	logger.Println("shutdown complete")
}
