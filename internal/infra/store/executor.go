package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// Executor defaults.
const (
	DefaultQueryTimeout = 10 * time.Second
	DefaultMaxRows      = 500
)

// Executor runs one validated statement inside a read-only transaction.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
}

// NewExecutor creates an Executor. Non-positive limits fall back to defaults.
func NewExecutor(db *sql.DB, timeout time.Duration, maxRows int) *Executor {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Executor{db: db, timeout: timeout, maxRows: maxRows}
}

// Execute returns at most maxRows rows as column→value maps. Driver errors
// come back wrapped in *domain.ErrQueryExecution and are meant for logs only.
func (e *Executor) Execute(ctx context.Context, query string) ([]domain.Row, error) {
	ctx, span := tracer.Start(ctx, "Executor.Execute")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, e.wrap(ctx, err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only, nothing to keep

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, e.wrap(ctx, err)
	}
	defer rows.Close()

	out, err := ScanRows(rows, e.maxRows)
	if err != nil {
		return nil, e.wrap(ctx, err)
	}
	span.SetAttributes(attribute.Int("sql.rows", len(out)))
	return out, nil
}

func (e *Executor) wrap(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.Join(err, &domain.ErrTimeout{Operation: "sql.execute"})
	}
	return &domain.ErrQueryExecution{Err: err}
}

// ScanRows reads up to limit rows. []byte values become strings so the rows
// serialise as text.
func ScanRows(rows *sql.Rows, limit int) ([]domain.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []domain.Row{}
	for rows.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(domain.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
