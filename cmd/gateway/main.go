package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/Newbigfonsz/llm-gateway/config"
	"github.com/Newbigfonsz/llm-gateway/internal/auth"
	"github.com/Newbigfonsz/llm-gateway/internal/backend"
	"github.com/Newbigfonsz/llm-gateway/internal/billing"
	"github.com/Newbigfonsz/llm-gateway/internal/engine"
	"github.com/Newbigfonsz/llm-gateway/internal/gateway"
	"github.com/Newbigfonsz/llm-gateway/internal/model"
	"github.com/Newbigfonsz/llm-gateway/internal/ratelimit"
	"github.com/Newbigfonsz/llm-gateway/internal/seeder"
	"github.com/Newbigfonsz/llm-gateway/internal/telemetry"
	"github.com/Newbigfonsz/llm-gateway/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("llm-gateway", cfg)
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}
	log.Info("PostgreSQL connected")

	// 4. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("failed to ping redis", "error", err)
		os.Exit(1)
	}
	log.Info("Redis connected")

	// 5. Init auth
	credStore := auth.NewPostgresStore(pool)
	authenticator := auth.NewAuthenticator(credStore, rdb,
		time.Duration(cfg.AuthCacheTTLSeconds)*time.Second, log)
	authMiddleware := auth.NewMiddleware(authenticator)

	// 6. Init rate limiter
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(rdb), log)

	// 7. Init model registry
	registry, err := model.NewRegistry(cfg.DefaultModel, model.DefaultCatalog())
	if err != nil {
		log.Error("failed to build model registry", "error", err)
		os.Exit(1)
	}

	// 8. Init inference backend + engine
	bedrock := backend.NewHTTPClient(cfg.BedrockEndpoint, cfg.BedrockAPIKey, log)
	eng := engine.New(bedrock, log)

	// 9. Init usage recording
	usageStore := billing.NewPostgresStore(pool)
	recorder := billing.NewRecorder(usageStore, cfg.UsageRetentionDays, log)

	// 10. Init handlers
	tracer := otel.GetTracerProvider().Tracer("llm-gateway")
	handler := gateway.NewHandler(registry, eng, limiter, recorder, tracer, log)
	admin := gateway.NewAdminHandler(credStore, cfg.AdminToken, cfg.RateLimitRPM, log)

	// 11. Seed test API key if RUN_SEED=true
	if os.Getenv("RUN_SEED") == "true" {
		seeder.SeedTestAPIKey(ctx, credStore, log)
	}

	// 12. Start usage retention sweeper
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go worker.NewSweeper(usageStore, time.Hour, log).Run(sweepCtx)

	// 13. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/health", handler.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/v1/models", handler.HandleModels)
		r.Post("/v1/chat", handler.HandleChat)
		r.Get("/v1/usage", handler.HandleUsage)
	})

	// Admin routes (disabled unless ADMIN_TOKEN is set)
	if cfg.AdminToken != "" {
		r.Post("/admin/keys", admin.HandleCreateKey)
		r.Get("/admin/keys", admin.HandleListKeys)
		r.Delete("/admin/keys/{id}", admin.HandleRevokeKey)
	}

	// 14. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("LLM Gateway starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	log.Info("shutting down gracefully")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
