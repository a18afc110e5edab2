package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/app"
	"github.com/boddenberg/finops-assistant-go/internal/config"
	"github.com/boddenberg/finops-assistant-go/internal/handler"
	"github.com/boddenberg/finops-assistant-go/internal/infra/observability"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("executor", cfg.Executor),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Duration("query_timeout", cfg.QueryTimeout),
		zap.Int("query_max_rows", cfg.QueryMaxRows),
		zap.Duration("llm_timeout", cfg.LLMTimeout),
		zap.Int("narrative_retries", cfg.NarrativeRetries),
		zap.Bool("auth_enabled", cfg.JWTSecret != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(context.Background(), "finops-api", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Services ---
	a, err := app.New(context.Background(), cfg, metrics, logger)
	if err != nil {
		logger.Fatal("failed to wire services", zap.Error(err))
	}
	defer a.Close()

	// --- Router ---
	deps := handler.Deps{
		Questions: a.Questions,
		Reports:   a.Reports,
		Rates:     a.Rates,
		Checks:    a.Checks,
		Metrics:   metrics,
		JWTSecret: cfg.JWTSecret,
		Logger:    logger,
	}
	router := handler.NewRouter(deps)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.LLMTimeout + cfg.QueryTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
