// Package warehouse runs generated queries against BigQuery.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

var tracer = otel.Tracer("warehouse")

// NUMERIC has 9 fractional digits, BIGNUMERIC 38.
const ratPrecision = 38

// Executor implements port.SQLExecutor on BigQuery. BigQuery has no
// read-only transactions; statements reaching it have already passed
// query.Validate, and the service account should only hold dataViewer.
type Executor struct {
	client  *bigquery.Client
	timeout time.Duration
	maxRows int
}

// NewClient opens a BigQuery client for project.
func NewClient(ctx context.Context, project string) (*bigquery.Client, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return client, nil
}

func NewExecutor(client *bigquery.Client, timeout time.Duration, maxRows int) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRows <= 0 {
		maxRows = 500
	}
	return &Executor{client: client, timeout: timeout, maxRows: maxRows}
}

func (e *Executor) Execute(ctx context.Context, sql string) ([]domain.Row, error) {
	ctx, span := tracer.Start(ctx, "Executor.Execute")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	q := e.client.Query(sql)
	it, err := q.Read(ctx)
	if err != nil {
		return nil, e.wrap(ctx, fmt.Errorf("query read: %w", err))
	}

	out := []domain.Row{}
	for len(out) < e.maxRows {
		var values map[string]bigquery.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, e.wrap(ctx, fmt.Errorf("iter next: %w", err))
		}
		out = append(out, ToRow(values))
	}

	span.SetAttributes(attribute.Int("sql.rows", len(out)))
	return out, nil
}

func (e *Executor) wrap(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.Join(err, &domain.ErrTimeout{Operation: "bigquery.execute"})
	}
	return &domain.ErrQueryExecution{Err: err}
}

// ToRow converts a BigQuery row into a domain row. NUMERIC values become
// decimal strings, byte columns strings, DATE/TIME civil values their
// canonical text.
func ToRow(values map[string]bigquery.Value) domain.Row {
	row := make(domain.Row, len(values))
	for k, v := range values {
		row[k] = convert(v)
	}
	return row
}

func convert(v bigquery.Value) any {
	switch x := v.(type) {
	case *big.Rat:
		if x == nil {
			return nil
		}
		return decimal.NewFromBigRat(x, ratPrecision).String()
	case []byte:
		return string(x)
	case time.Time:
		return x
	case fmt.Stringer:
		return x.String()
	case []bigquery.Value:
		out := make([]any, len(x))
		for i := range x {
			out[i] = convert(x[i])
		}
		return out
	default:
		return v
	}
}
