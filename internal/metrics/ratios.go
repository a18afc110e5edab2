package metrics

import "github.com/shopspring/decimal"

// Profitability returns net/income × 100, or zero when income is zero.
// The value is not clamped.
func Profitability(income, net decimal.Decimal) decimal.Decimal {
	return percentage(net, income)
}

// RatiosCalculator runs last: it needs both totals and results.
type RatiosCalculator struct{}

func (RatiosCalculator) Name() string { return "ratios" }

func (c RatiosCalculator) Compute(s *State) (Fragment, error) {
	if s.Totals == nil {
		return nil, &DependencyError{Calculator: c.Name(), Requires: "totals"}
	}
	if s.Results == nil {
		return nil, &DependencyError{Calculator: c.Name(), Requires: "results"}
	}
	t, r := s.Totals, s.Results
	return Fragment{
		"profitability_uyu": Profitability(t.IncomeUYU, r.NetUYU),
		"profitability_usd": Profitability(t.IncomeUSD, r.NetUSD),
		"expense_ratio_uyu": percentage(t.ExpenseUYU, t.IncomeUYU),
	}, nil
}
