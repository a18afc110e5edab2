package metrics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// Uncategorized labels transactions with an empty category.
const Uncategorized = "Sin categoría"

// Share is one row of a per-category (or per-locality) breakdown.
type Share struct {
	Total decimal.Decimal `json:"total"`
	Share decimal.Decimal `json:"share"`
	Count int             `json:"count"`
}

// Breakdown maps a group label to its share of a type total.
type Breakdown map[string]Share

// Leading returns the group with the largest total. Equal maxima are broken
// alphabetically so the result never depends on input order.
func (b Breakdown) Leading() (string, Share, bool) {
	if len(b) == 0 {
		return "", Share{}, false
	}
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)

	best := names[0]
	for _, name := range names[1:] {
		if b[name].Total.GreaterThan(b[best].Total) {
			best = name
		}
	}
	return best, b[best], true
}

// ShareBy groups txs of type tt by key and expresses each group as a share of total (UYU).
func ShareBy(txs []domain.Transaction, tt domain.TransactionType, total decimal.Decimal, key func(domain.Transaction) string) Breakdown {
	out := Breakdown{}
	for _, tx := range txs {
		if tx.Deleted || tx.Type != tt {
			continue
		}
		k := key(tx)
		s := out[k]
		s.Total = s.Total.Add(tx.AmountUYU)
		s.Count++
		out[k] = s
	}
	for k, s := range out {
		s.Share = percentage(s.Total, total)
		out[k] = s
	}
	return out
}

func categoryOf(tx domain.Transaction) string {
	if c := strings.TrimSpace(tx.Category); c != "" {
		return c
	}
	return Uncategorized
}

func localityOf(tx domain.Transaction) string {
	if l := strings.TrimSpace(tx.Locality); l != "" {
		return l
	}
	return Uncategorized
}

type DistributionCalculator struct{}

func (DistributionCalculator) Name() string { return "distribution" }

func (c DistributionCalculator) Compute(s *State) (Fragment, error) {
	if s.Totals == nil {
		return nil, &DependencyError{Calculator: c.Name(), Requires: "totals"}
	}

	income := ShareBy(s.Transactions, domain.TypeIncome, s.Totals.IncomeUYU, categoryOf)
	expense := ShareBy(s.Transactions, domain.TypeExpense, s.Totals.ExpenseUYU, categoryOf)
	byLocality := ShareBy(s.Transactions, domain.TypeIncome, s.Totals.IncomeUYU, localityOf)

	f := Fragment{
		"income_by_category":  income,
		"expense_by_category": expense,
		"income_by_locality":  byLocality,
	}
	putLeading(f, "leading_income_category", income)
	putLeading(f, "leading_expense_category", expense)
	return f, nil
}

// putLeading writes name and name_share, both nil when the breakdown is empty.
func putLeading(f Fragment, key string, b Breakdown) {
	name, s, ok := b.Leading()
	if !ok {
		f[key] = nil
		f[key+"_share"] = nil
		return
	}
	f[key] = name
	f[key+"_share"] = s.Share
}
