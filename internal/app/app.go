// Package app wires configuration into services. It is shared by the HTTP
// server and the Discord bot.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/config"
	"github.com/boddenberg/finops-assistant-go/internal/infra/cache"
	"github.com/boddenberg/finops-assistant-go/internal/infra/client"
	"github.com/boddenberg/finops-assistant-go/internal/infra/llm"
	"github.com/boddenberg/finops-assistant-go/internal/infra/observability"
	"github.com/boddenberg/finops-assistant-go/internal/infra/rates"
	"github.com/boddenberg/finops-assistant-go/internal/infra/resilience"
	"github.com/boddenberg/finops-assistant-go/internal/infra/store"
	"github.com/boddenberg/finops-assistant-go/internal/infra/warehouse"
	"github.com/boddenberg/finops-assistant-go/internal/narrative"
	"github.com/boddenberg/finops-assistant-go/internal/port"
	"github.com/boddenberg/finops-assistant-go/internal/service"
	"github.com/boddenberg/finops-assistant-go/internal/textsql"
)

// App holds the wired services and the resources to release on shutdown.
type App struct {
	Questions *service.QueryService
	Reports   *service.MetricsService
	// Rates is nil when no rate source is configured.
	Rates  port.RateProvider
	Checks map[string]port.Pinger

	closers []func() error
}

// Close releases every resource opened by New, in reverse order.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New builds the ledger, LLM, exchange-rate and service layers from cfg.
func New(ctx context.Context, cfg *config.Config, m *observability.Metrics, logger *zap.Logger) (*App, error) {
	a := &App{Checks: make(map[string]port.Pinger)}

	if err := a.build(ctx, cfg, m, logger); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, m *observability.Metrics, logger *zap.Logger) error {
	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.LLMMaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Ledger ---
	repo, executor, dialect, err := a.openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// --- LLM ---
	var llmClient port.LLMClient
	llmBreaker := resilience.NewCircuitBreaker("llm", logger)
	switch cfg.LLMProvider {
	case "agent":
		if cfg.AgentAPIURL == "" {
			return fmt.Errorf("LLM_PROVIDER=agent requires AGENT_API_URL")
		}
		llmClient = client.NewAgentClient(&http.Client{Timeout: cfg.LLMTimeout}, cfg.AgentAPIURL, llmBreaker, resilienceCfg, m)
	case "gemini":
		g, err := llm.NewGemini(ctx, cfg.LLMModel, llmBreaker, resilienceCfg, m)
		if err != nil {
			return err
		}
		llmClient = g
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
	logger.Info("llm configured", zap.String("provider", cfg.LLMProvider), zap.String("model", cfg.LLMModel))

	engine := textsql.NewEngine(llmClient, textsql.Config{
		Dialect: dialect,
		Table:   store.TableName,
		Timeout: cfg.LLMTimeout,
	})
	narrator := narrative.NewGenerator(llmClient, narrative.Config{
		Retries:    cfg.NarrativeRetries,
		RetryDelay: cfg.NarrativeDelay,
		Timeout:    cfg.LLMTimeout,
		MaxTokens:  cfg.NarrativeMaxTokens,
	}, logger)

	// --- Exchange rate ---
	if cfg.RateAPIURL != "" {
		source := client.NewRateClient(httpClient, cfg.RateAPIURL, resilience.NewCircuitBreaker("rates", logger), resilienceCfg)

		var entries port.Cache[rates.Entry]
		if cfg.RedisAddr != "" {
			rc, err := cache.NewRedisClient(cfg.RedisAddr)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, func() error { rc.Close(); return nil })
			redisStore := cache.NewRedis[rates.Entry](rc, "finops:", cfg.RateStaleness)
			a.Checks["redis"] = redisStore
			entries = redisStore
		} else {
			mem := cache.New[rates.Entry](cfg.RateStaleness)
			a.closers = append(a.closers, func() error { mem.Close(); return nil })
			entries = mem
		}
		a.Rates = rates.NewProvider(source, entries, cfg.RateStaleness, logger, rates.WithRecorder(m))
	} else {
		logger.Warn("RATE_API_URL not set, exchange-rate metadata disabled")
	}

	// --- Services ---
	a.Questions = service.NewQueryService(engine, executor, narrator, m, logger)
	a.Reports = service.NewMetricsService(repo, a.Rates, narrator, cfg.MetricsMinTransactions, m, logger)
	return nil
}

// openLedger returns the metrics repository, the read-only executor for
// generated SQL, and the SQL dialect the generator must target.
func (a *App) openLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.TransactionRepository, port.SQLExecutor, string, error) {
	var (
		repo    port.TransactionRepository
		queryDB func() (port.SQLExecutor, error)
		dialect string
	)

	switch cfg.DBDriver {
	case "sqlite":
		db, err := store.OpenSQLite(cfg.DBDSN)
		if err != nil {
			return nil, nil, "", err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, "", fmt.Errorf("sqlite handle: %w", err)
		}
		a.closers = append(a.closers, sqlDB.Close)
		gormRepo := store.NewGormRepository(db)
		a.Checks["ledger"] = gormRepo
		repo, dialect = gormRepo, textsql.DialectSQLite

		queryDB = func() (port.SQLExecutor, error) {
			ro, err := store.OpenSQLiteReadOnly(cfg.DBDSN)
			if err != nil {
				return nil, err
			}
			roDB, err := ro.DB()
			if err != nil {
				return nil, fmt.Errorf("sqlite handle: %w", err)
			}
			a.closers = append(a.closers, roDB.Close)
			return store.NewExecutor(roDB, cfg.QueryTimeout, cfg.QueryMaxRows), nil
		}
	case "postgres":
		db, err := store.OpenPostgres(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, "", err
		}
		a.closers = append(a.closers, db.Close)
		sqlRepo := store.NewSQLRepository(db)
		a.Checks["ledger"] = sqlRepo
		repo, dialect = sqlRepo, textsql.DialectPostgres

		queryDB = func() (port.SQLExecutor, error) {
			return store.NewExecutor(db, cfg.QueryTimeout, cfg.QueryMaxRows), nil
		}
	default:
		return nil, nil, "", fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}

	var executor port.SQLExecutor
	switch cfg.Executor {
	case "sql":
		e, err := queryDB()
		if err != nil {
			return nil, nil, "", err
		}
		executor = e
	case "bigquery":
		if cfg.BigQueryProj == "" {
			return nil, nil, "", fmt.Errorf("EXECUTOR=bigquery requires BIGQUERY_PROJECT")
		}
		bq, err := warehouse.NewClient(ctx, cfg.BigQueryProj)
		if err != nil {
			return nil, nil, "", err
		}
		a.closers = append(a.closers, bq.Close)
		executor = warehouse.NewExecutor(bq, cfg.QueryTimeout, cfg.QueryMaxRows)
		dialect = textsql.DialectBigQuery
	default:
		return nil, nil, "", fmt.Errorf("unknown EXECUTOR %q", cfg.Executor)
	}

	logger.Info("ledger configured",
		zap.String("driver", cfg.DBDriver),
		zap.String("executor", cfg.Executor),
		zap.String("dialect", dialect),
	)
	return repo, executor, dialect, nil
}
