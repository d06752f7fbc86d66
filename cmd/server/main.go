package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/reliefconnect/api/internal/cache"
	"github.com/reliefconnect/api/internal/client"
	"github.com/reliefconnect/api/internal/config"
	"github.com/reliefconnect/api/internal/database"
	"github.com/reliefconnect/api/internal/handler"
	"github.com/reliefconnect/api/internal/lifecycle"
	"github.com/reliefconnect/api/internal/logging"
	"github.com/reliefconnect/api/internal/middleware"
	"github.com/reliefconnect/api/internal/mission"
	"github.com/reliefconnect/api/internal/query"
	"github.com/reliefconnect/api/internal/ratelimit"
	"github.com/reliefconnect/api/internal/realtime"
	"github.com/reliefconnect/api/internal/report"
	"github.com/reliefconnect/api/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to read .env")
	}
	cfg := config.Load()
	logging.Setup(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}
	s := store.NewGormStore(db)

	// Redis backs the rate limiter and the stats cache. Without it both are
	// skipped (fail-open).
	var (
		limiter    middleware.RateChecker
		statsCache query.JSONCache
	)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	rdb, err := cache.NewRedisClient(pingCtx, cfg.RedisURL)
	cancel()
	if err != nil {
		log.WithError(err).Warn("redis unavailable, rate limiting and stats cache disabled")
	} else {
		defer rdb.Close()
		limiter = newLimiter(rdb, cfg)
		statsCache = cache.NewRedisCache(rdb, "relief:")
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	requests := lifecycle.NewManager(s)
	router := handler.NewRouter(handler.Deps{
		Requests: requests,
		Views:    query.NewService(requests, s, statsCache, cfg.StatsCacheTTL),
		Missions: mission.NewEngine(s),
		Reports:  report.NewAggregator(s),
		Analyzer: client.NewExtractorClient(cfg.ExtractorURL),
		Hub:      hub,
		Limiter:  limiter,
		Store:    s,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func newLimiter(rdb *redis.Client, cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.NewLimiter(ratelimit.NewRedisCounter(rdb), map[string]ratelimit.Rule{
		handler.ActionCreateRequest: {Limit: cfg.RateLimitCreates, Window: cfg.RateLimitWindow},
	})
}
