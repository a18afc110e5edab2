package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// Average returns total/count rounded to two places, zero when count is zero.
func Average(total decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(int64(count)), 2)
}

type EfficiencyCalculator struct{}

func (EfficiencyCalculator) Name() string { return "efficiency" }

func (c EfficiencyCalculator) Compute(s *State) (Fragment, error) {
	if s.Totals == nil {
		return nil, &DependencyError{Calculator: c.Name(), Requires: "totals"}
	}

	var total, incomes, expenses int
	for _, tx := range s.Transactions {
		if tx.Deleted {
			continue
		}
		total++
		switch tx.Type {
		case domain.TypeIncome:
			incomes++
		case domain.TypeExpense:
			expenses++
		}
	}

	t := s.Totals
	return Fragment{
		"avg_income_uyu":    Average(t.IncomeUYU, incomes),
		"avg_income_usd":    Average(t.IncomeUSD, incomes),
		"avg_expense_uyu":   Average(t.ExpenseUYU, expenses),
		"avg_expense_usd":   Average(t.ExpenseUSD, expenses),
		"transaction_count": total,
		"income_count":      incomes,
		"expense_count":     expenses,
	}, nil
}
