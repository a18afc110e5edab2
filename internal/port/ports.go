// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// TransactionRepository reads the ledger snapshot for a date range.
// Soft-deleted rows are never returned.
type TransactionRepository interface {
	Fetch(ctx context.Context, start, end time.Time, filters domain.TransactionFilters) ([]domain.Transaction, error)
}

// SQLGenerator turns a question into raw model output that should contain SQL.
type SQLGenerator interface {
	Generate(ctx context.Context, question string, history []domain.ConversationTurn) (string, error)
}

// LLMClient invokes a text-completion model.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// SQLExecutor runs a single validated, read-only statement.
type SQLExecutor interface {
	Execute(ctx context.Context, sql string) ([]domain.Row, error)
}

// RateProvider returns the current USD→UYU rate.
type RateProvider interface {
	Current(ctx context.Context) (domain.ExchangeRate, error)
}

// RateSource fetches a fresh rate from upstream, bypassing any cache.
type RateSource interface {
	Fetch(ctx context.Context) (domain.ExchangeRate, error)
}

// Cache provides generic caching with per-entry TTL.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by dependencies that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
