package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// OpenPostgres opens a pooled Postgres connection and pings it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// SQLRepository implements port.TransactionRepository with database/sql.
// Placeholders are $n, which both Postgres and SQLite accept.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const selectColumns = `id, tipo, fecha, monto_original, moneda_original, tipo_cambio,
	monto_uyu, monto_usd, categoria, localidad, nombre_contraparte, descripcion`

// Fetch returns the non-deleted transactions dated within [start, end].
func (r *SQLRepository) Fetch(ctx context.Context, start, end time.Time, f domain.TransactionFilters) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.Fetch")
	defer span.End()

	from, to := dayRange(start, end)
	args := []any{from, to}
	where := []string{"deleted_at IS NULL", "fecha >= $1", "fecha < $2"}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if labels := typeLabelsFor(f.Types); len(labels) > 0 {
		ph := make([]string, len(labels))
		for i, l := range labels {
			ph[i] = next(l)
		}
		where = append(where, "tipo IN ("+strings.Join(ph, ", ")+")")
	}
	if f.Category != "" {
		where = append(where, "categoria = "+next(f.Category))
	}
	if f.Locality != "" {
		where = append(where, "localidad = "+next(f.Locality))
	}
	if f.Counterparty != "" {
		where = append(where, "nombre_contraparte = "+next(f.Counterparty))
	}

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY fecha, id",
		selectColumns, TableName, strings.Join(where, " AND "))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			rec                                      TransactionRecord
			original, rate, uyu, usd                 decimal.NullDecimal
			categoria, localidad, contraparte, descr sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Tipo, &rec.Fecha, &original, &rec.MonedaOriginal, &rate,
			&uyu, &usd, &categoria, &localidad, &contraparte, &descr); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		rec.MontoOriginal = original.Decimal
		rec.TipoCambio = rate.Decimal
		rec.MontoUYU = uyu.Decimal
		rec.MontoUSD = usd.Decimal
		rec.Categoria = categoria.String
		rec.Localidad = localidad.String
		rec.NombreContraparte = contraparte.String
		rec.Descripcion = descr.String

		tx, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return out, nil
}

// Ping checks the connection.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
