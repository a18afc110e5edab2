package metrics

import "github.com/shopspring/decimal"

// Variation returns (current-previous)/previous × 100 rounded to two places.
// ok is false when previous is zero: the change is not computable, which is
// different from "no change".
func Variation(current, previous decimal.Decimal) (v decimal.Decimal, ok bool) {
	if previous.IsZero() {
		return decimal.Zero, false
	}
	return current.Sub(previous).Mul(hundred).DivRound(previous, 8).Round(2), true
}

type TrendsCalculator struct{}

func (TrendsCalculator) Name() string { return "trends" }

func (c TrendsCalculator) Compute(s *State) (Fragment, error) {
	if s.Totals == nil {
		return nil, &DependencyError{Calculator: c.Name(), Requires: "totals"}
	}

	keys := []string{
		"income_variation_uyu", "income_variation_usd",
		"expense_variation_uyu", "expense_variation_usd",
		"net_result_variation_uyu", "net_result_variation_usd",
	}
	f := make(Fragment, len(keys))
	if !s.HasComparison || s.ComparisonTotals == nil {
		for _, k := range keys {
			f[k] = nil
		}
		return f, nil
	}

	cur, prev := *s.Totals, *s.ComparisonTotals
	curNet, prevNet := NetResult(cur), NetResult(prev)
	pairs := [][2]decimal.Decimal{
		{cur.IncomeUYU, prev.IncomeUYU}, {cur.IncomeUSD, prev.IncomeUSD},
		{cur.ExpenseUYU, prev.ExpenseUYU}, {cur.ExpenseUSD, prev.ExpenseUSD},
		{curNet.NetUYU, prevNet.NetUYU}, {curNet.NetUSD, prevNet.NetUSD},
	}
	for i, k := range keys {
		if v, ok := Variation(pairs[i][0], pairs[i][1]); ok {
			f[k] = v
		} else {
			f[k] = nil
		}
	}
	return f, nil
}
