package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transações (snapshot de leitura para o motor de métricas)
// ============================================================

// TransactionType is one of the four recognized financial movements.
type TransactionType string

const (
	TypeIncome       TransactionType = "INCOME"
	TypeExpense      TransactionType = "EXPENSE"
	TypeWithdrawal   TransactionType = "WITHDRAWAL"
	TypeDistribution TransactionType = "DISTRIBUTION"
)

// TransactionTypes lists every recognized type in reporting order.
var TransactionTypes = []TransactionType{TypeIncome, TypeExpense, TypeWithdrawal, TypeDistribution}

// Valid reports whether t is a recognized transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeWithdrawal, TypeDistribution:
		return true
	}
	return false
}

// ParseTransactionType accepts both the canonical names and the
// Spanish labels stored by the ledger ("INGRESO", "GASTO", "RETIRO", "DISTRIBUCION").
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INCOME", "INGRESO":
		return TypeIncome, nil
	case "EXPENSE", "GASTO":
		return TypeExpense, nil
	case "WITHDRAWAL", "RETIRO":
		return TypeWithdrawal, nil
	case "DISTRIBUTION", "DISTRIBUCION", "DISTRIBUCIÓN":
		return TypeDistribution, nil
	}
	return "", &ErrInvalidTransaction{Reason: fmt.Sprintf("unknown transaction type %q", s)}
}

// Currency identifies one side of a dual-currency amount.
type Currency string

const (
	// CurrencyUYU is currency A, the firm's local reporting currency.
	CurrencyUYU Currency = "UYU"
	// CurrencyUSD is currency B.
	CurrencyUSD Currency = "USD"
)

// Transaction is an immutable ledger record. AmountUYU and AmountUSD are
// precomputed by the persistence layer through ExchangeRate and are trusted as-is.
type Transaction struct {
	ID               string          `json:"id"`
	Type             TransactionType `json:"type"`
	Date             time.Time       `json:"date"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	OriginalCurrency Currency        `json:"original_currency"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	AmountUYU        decimal.Decimal `json:"amount_uyu"`
	AmountUSD        decimal.Decimal `json:"amount_usd"`
	Category         string          `json:"category,omitempty"`
	Locality         string          `json:"locality"`
	Counterparty     string          `json:"counterparty,omitempty"`
	Description      string          `json:"description,omitempty"`
	Deleted          bool            `json:"deleted,omitempty"`
}

// Amount returns the dual-currency amount for the given side.
func (t Transaction) Amount(c Currency) decimal.Decimal {
	if c == CurrencyUSD {
		return t.AmountUSD
	}
	return t.AmountUYU
}

// TransactionFilters narrows a repository fetch. Zero values mean "no filter".
type TransactionFilters struct {
	Types        []TransactionType `json:"types,omitempty"`
	Category     string            `json:"category,omitempty"`
	Locality     string            `json:"locality,omitempty"`
	Counterparty string            `json:"counterparty,omitempty"`
}

// Period is an inclusive date range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Previous returns the period of equal length immediately before p.
func (p Period) Previous() Period {
	days := int(p.End.Sub(p.Start).Hours()/24) + 1
	return Period{
		Start: p.Start.AddDate(0, 0, -days),
		End:   p.Start.AddDate(0, 0, -1),
	}
}

// Validate checks the range is well formed.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ErrValidation{Field: "period", Message: "start and end are required"}
	}
	if p.End.Before(p.Start) {
		return &ErrValidation{Field: "period", Message: "end must not be before start"}
	}
	return nil
}
