// Package store reads the transaction ledger from SQL storage: a GORM
// repository for the local SQLite ledger, a database/sql repository for
// Postgres, and the read-only executor used by the question pipeline.
package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// TableName is the ledger table queried by generated SQL.
const TableName = "transacciones"

// TransactionRecord is the stored ledger row. Column names are Spanish
// because the SQL generator prompt describes them that way.
type TransactionRecord struct {
	ID                string          `gorm:"column:id;primaryKey"`
	Tipo              string          `gorm:"column:tipo;index;not null"`
	Fecha             time.Time       `gorm:"column:fecha;index;not null"`
	MontoOriginal     decimal.Decimal `gorm:"column:monto_original;type:decimal(18,2);not null"`
	MonedaOriginal    string          `gorm:"column:moneda_original;not null"`
	TipoCambio        decimal.Decimal `gorm:"column:tipo_cambio;type:decimal(18,6);not null"`
	MontoUYU          decimal.Decimal `gorm:"column:monto_uyu;type:decimal(18,2);not null"`
	MontoUSD          decimal.Decimal `gorm:"column:monto_usd;type:decimal(18,2);not null"`
	Categoria         string          `gorm:"column:categoria"`
	Localidad         string          `gorm:"column:localidad"`
	NombreContraparte string          `gorm:"column:nombre_contraparte"`
	Descripcion       string          `gorm:"column:descripcion"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

func (TransactionRecord) TableName() string { return TableName }

// Stored labels for each transaction type.
var typeLabels = map[domain.TransactionType]string{
	domain.TypeIncome:       "INGRESO",
	domain.TypeExpense:      "GASTO",
	domain.TypeWithdrawal:   "RETIRO",
	domain.TypeDistribution: "DISTRIBUCION",
}

// TypeLabel returns the stored label for t.
func TypeLabel(t domain.TransactionType) string {
	return typeLabels[t]
}

func recordFromDomain(tx domain.Transaction) TransactionRecord {
	return TransactionRecord{
		ID:                tx.ID,
		Tipo:              TypeLabel(tx.Type),
		Fecha:             tx.Date.UTC(),
		MontoOriginal:     tx.OriginalAmount,
		MonedaOriginal:    string(tx.OriginalCurrency),
		TipoCambio:        tx.ExchangeRate,
		MontoUYU:          tx.AmountUYU,
		MontoUSD:          tx.AmountUSD,
		Categoria:         tx.Category,
		Localidad:         tx.Locality,
		NombreContraparte: tx.Counterparty,
		Descripcion:       tx.Description,
	}
}

func (r TransactionRecord) toDomain() (domain.Transaction, error) {
	tt, err := domain.ParseTransactionType(r.Tipo)
	if err != nil {
		return domain.Transaction{}, &domain.ErrInvalidTransaction{ID: r.ID, Reason: err.Error()}
	}
	return domain.Transaction{
		ID:               r.ID,
		Type:             tt,
		Date:             r.Fecha,
		OriginalAmount:   r.MontoOriginal,
		OriginalCurrency: domain.Currency(r.MonedaOriginal),
		ExchangeRate:     r.TipoCambio,
		AmountUYU:        r.MontoUYU,
		AmountUSD:        r.MontoUSD,
		Category:         r.Categoria,
		Locality:         r.Localidad,
		Counterparty:     r.NombreContraparte,
		Description:      r.Descripcion,
		Deleted:          r.DeletedAt.Valid,
	}, nil
}

// dayRange turns an inclusive date range into [from, to) instants.
func dayRange(start, end time.Time) (time.Time, time.Time) {
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return from, to
}

func typeLabelsFor(types []domain.TransactionType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if l := TypeLabel(t); l != "" {
			out = append(out, l)
		}
	}
	return out
}
