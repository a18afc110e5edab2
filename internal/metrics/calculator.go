// Package metrics computes the financial metric bag for a period from a
// snapshot of ledger transactions.
//
// Calculators form a closed set and run in a fixed order:
//
//	Totals → Results, Distribution, Efficiency, Trends → Ratios
//
// Each one reads the shared State, may record typed intermediate values on it
// for later calculators, and returns a flat Fragment that the aggregator merges
// into the final Bag.
package metrics

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// Fragment is the partial output of one calculator.
type Fragment map[string]any

// Calculator is one stage of the metrics chain.
type Calculator interface {
	Name() string
	Compute(s *State) (Fragment, error)
}

// State carries the inputs and the typed intermediates shared along the chain.
// Calculators only write the field they own.
type State struct {
	Transactions  []domain.Transaction
	Comparison    []domain.Transaction
	HasComparison bool

	Totals           *Totals
	ComparisonTotals *Totals
	Results          *Results
}

// DependencyError is returned when a calculator runs before its inputs exist.
type DependencyError struct {
	Calculator string
	Requires   string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("metrics: %s requires %s to run first", e.Calculator, e.Requires)
}

var hundred = decimal.NewFromInt(100)

// percentage returns part/whole*100 rounded to two places, or zero when whole is zero.
func percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 8).Round(2)
}

// active filters out soft-deleted rows.
func active(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.Deleted {
			out = append(out, tx)
		}
	}
	return out
}
