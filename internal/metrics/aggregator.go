package metrics

import (
	"fmt"
	"time"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

const dateLayout = "2006-01-02"

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// DefaultCalculators returns the chain in dependency order.
func DefaultCalculators() []Calculator {
	return []Calculator{
		TotalsCalculator{},
		ResultsCalculator{},
		DistributionCalculator{},
		EfficiencyCalculator{},
		TrendsCalculator{},
		RatiosCalculator{},
	}
}

// Option adds optional metadata to an aggregation.
type Option func(*options)

type options struct {
	rate       *domain.ExchangeRate
	comparison *domain.Period
}

// WithExchangeRate records the rate that was current when the bag was built.
func WithExchangeRate(r domain.ExchangeRate) Option {
	return func(o *options) { o.rate = &r }
}

// WithComparisonPeriod records the boundaries of the comparison period.
func WithComparisonPeriod(p domain.Period) Option {
	return func(o *options) { o.comparison = &p }
}

// Aggregator runs an ordered list of calculators and merges their fragments.
type Aggregator struct {
	calculators []Calculator
}

// NewAggregator builds an aggregator. With no arguments it uses DefaultCalculators.
func NewAggregator(calcs ...Calculator) *Aggregator {
	if len(calcs) == 0 {
		calcs = DefaultCalculators()
	}
	return &Aggregator{calculators: calcs}
}

// Aggregate is the package entry point using the default chain.
// A nil comparison means no comparison period was requested.
func Aggregate(tx, comparison []domain.Transaction, start, end time.Time, opts ...Option) (Bag, error) {
	return NewAggregator().Aggregate(tx, comparison, start, end, opts...)
}

// Aggregate runs every calculator in order. Any error aborts the whole bag.
func (a *Aggregator) Aggregate(tx, comparison []domain.Transaction, start, end time.Time, opts ...Option) (Bag, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &State{
		Transactions:  tx,
		Comparison:    comparison,
		HasComparison: comparison != nil,
	}

	values := make(map[string]any, 64)
	for _, c := range a.calculators {
		frag, err := c.Compute(s)
		if err != nil {
			return Bag{}, fmt.Errorf("metrics: %s: %w", c.Name(), err)
		}
		if err := merge(values, frag, c.Name()); err != nil {
			return Bag{}, err
		}
	}

	meta := Fragment{
		"period_start":       start.Format(dateLayout),
		"period_end":         end.Format(dateLayout),
		"period_label":       PeriodLabel(start, end),
		"total_transactions": len(active(tx)),
	}
	if o.comparison != nil {
		meta["comparison_start"] = o.comparison.Start.Format(dateLayout)
		meta["comparison_end"] = o.comparison.End.Format(dateLayout)
	}
	if o.rate != nil {
		meta["exchange_rate_usd_uyu"] = o.rate.Rate
		meta["exchange_rate_as_of"] = o.rate.AsOf
	}
	if err := merge(values, meta, "metadata"); err != nil {
		return Bag{}, err
	}

	return Bag{values: values}, nil
}

func merge(dst map[string]any, frag Fragment, source string) error {
	for k, v := range frag {
		if _, dup := dst[k]; dup {
			return fmt.Errorf("metrics: %s: duplicate metric key %q", source, k)
		}
		dst[k] = v
	}
	return nil
}

// PeriodLabel renders a period in Spanish: "Marzo 2025" for a whole month,
// "2025" for a whole year, otherwise "01/01/2025 al 31/03/2025".
func PeriodLabel(start, end time.Time) string {
	sy, sm, sd := start.Date()
	ey, em, _ := end.Date()

	lastOfMonth := end.AddDate(0, 0, 1).Day() == 1
	if sd == 1 && lastOfMonth && sy == ey {
		if sm == em {
			return fmt.Sprintf("%s %d", monthNames[sm-1], sy)
		}
		if sm == time.January && em == time.December {
			return fmt.Sprintf("%d", sy)
		}
	}
	return fmt.Sprintf("%s al %s", start.Format("02/01/2006"), end.Format("02/01/2006"))
}
