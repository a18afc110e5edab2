package metrics

import "github.com/shopspring/decimal"

// Results is the net result of a period in both currencies.
type Results struct {
	NetUYU decimal.Decimal
	NetUSD decimal.Decimal
}

// NetResult is income minus expense. Withdrawals and distributions are uses
// of profit and never enter the subtraction.
func NetResult(t Totals) Results {
	return Results{
		NetUYU: t.IncomeUYU.Sub(t.ExpenseUYU),
		NetUSD: t.IncomeUSD.Sub(t.ExpenseUSD),
	}
}

type ResultsCalculator struct{}

func (ResultsCalculator) Name() string { return "results" }

func (c ResultsCalculator) Compute(s *State) (Fragment, error) {
	if s.Totals == nil {
		return nil, &DependencyError{Calculator: c.Name(), Requires: "totals"}
	}
	r := NetResult(*s.Totals)
	s.Results = &r
	return Fragment{
		"net_result_uyu": r.NetUYU,
		"net_result_usd": r.NetUSD,
	}, nil
}
