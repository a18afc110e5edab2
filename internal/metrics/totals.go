package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// Totals holds the eight type × currency sums of a period.
type Totals struct {
	IncomeUYU       decimal.Decimal
	IncomeUSD       decimal.Decimal
	ExpenseUYU      decimal.Decimal
	ExpenseUSD      decimal.Decimal
	WithdrawalUYU   decimal.Decimal
	WithdrawalUSD   decimal.Decimal
	DistributionUYU decimal.Decimal
	DistributionUSD decimal.Decimal
}

// Income returns the income total in the given currency.
func (t Totals) Income(c domain.Currency) decimal.Decimal {
	if c == domain.CurrencyUSD {
		return t.IncomeUSD
	}
	return t.IncomeUYU
}

// Expense returns the expense total in the given currency.
func (t Totals) Expense(c domain.Currency) decimal.Decimal {
	if c == domain.CurrencyUSD {
		return t.ExpenseUSD
	}
	return t.ExpenseUYU
}

// SumTotals adds up the dual-currency amounts of txs by type.
// Soft-deleted rows are skipped; an unknown type is a data error.
func SumTotals(txs []domain.Transaction) (Totals, error) {
	var t Totals
	for _, tx := range txs {
		if tx.Deleted {
			continue
		}
		switch tx.Type {
		case domain.TypeIncome:
			t.IncomeUYU = t.IncomeUYU.Add(tx.AmountUYU)
			t.IncomeUSD = t.IncomeUSD.Add(tx.AmountUSD)
		case domain.TypeExpense:
			t.ExpenseUYU = t.ExpenseUYU.Add(tx.AmountUYU)
			t.ExpenseUSD = t.ExpenseUSD.Add(tx.AmountUSD)
		case domain.TypeWithdrawal:
			t.WithdrawalUYU = t.WithdrawalUYU.Add(tx.AmountUYU)
			t.WithdrawalUSD = t.WithdrawalUSD.Add(tx.AmountUSD)
		case domain.TypeDistribution:
			t.DistributionUYU = t.DistributionUYU.Add(tx.AmountUYU)
			t.DistributionUSD = t.DistributionUSD.Add(tx.AmountUSD)
		default:
			return Totals{}, &domain.ErrInvalidTransaction{ID: tx.ID, Reason: "unknown type " + string(tx.Type)}
		}
	}
	return t, nil
}

// TotalsCalculator is the leaf of the chain.
type TotalsCalculator struct{}

func (TotalsCalculator) Name() string { return "totals" }

func (TotalsCalculator) Compute(s *State) (Fragment, error) {
	cur, err := SumTotals(s.Transactions)
	if err != nil {
		return nil, err
	}
	s.Totals = &cur

	if s.HasComparison {
		prev, err := SumTotals(s.Comparison)
		if err != nil {
			return nil, err
		}
		s.ComparisonTotals = &prev
	}

	return Fragment{
		"income_uyu":       cur.IncomeUYU,
		"income_usd":       cur.IncomeUSD,
		"expense_uyu":      cur.ExpenseUYU,
		"expense_usd":      cur.ExpenseUSD,
		"withdrawal_uyu":   cur.WithdrawalUYU,
		"withdrawal_usd":   cur.WithdrawalUSD,
		"distribution_uyu": cur.DistributionUYU,
		"distribution_usd": cur.DistributionUSD,
	}, nil
}
