package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/infra/observability"
	"github.com/boddenberg/finops-assistant-go/internal/metrics"
	"github.com/boddenberg/finops-assistant-go/internal/narrative"
	"github.com/boddenberg/finops-assistant-go/internal/port"
)

// MetricsRequest selects the period, the filters and the optional
// comparison. Compare takes precedence over ComparePrevious.
type MetricsRequest struct {
	Start           time.Time
	End             time.Time
	Filters         domain.TransactionFilters
	Compare         *domain.Period
	ComparePrevious bool
}

func (r MetricsRequest) period() domain.Period {
	return domain.Period{Start: r.Start, End: r.End}
}

func (r MetricsRequest) comparison() *domain.Period {
	if r.Compare != nil {
		return r.Compare
	}
	if r.ComparePrevious {
		prev := r.period().Previous()
		return &prev
	}
	return nil
}

// Insight is a narrated metrics report.
type Insight struct {
	Kind     string      `json:"kind"`
	Text     string      `json:"text"`
	Fallback bool        `json:"fallback"`
	Metrics  metrics.Bag `json:"metrics"`
}

// MetricsService builds metric bags from the ledger.
type MetricsService struct {
	repo            port.TransactionRepository
	rates           port.RateProvider
	narrator        *narrative.Generator
	aggregator      *metrics.Aggregator
	minTransactions int
	metrics         *observability.Metrics
	logger          *zap.Logger
}

// NewMetricsService creates the service. rates may be nil, in which case
// bags carry no exchange-rate metadata.
func NewMetricsService(
	repo port.TransactionRepository,
	rates port.RateProvider,
	narrator *narrative.Generator,
	minTransactions int,
	m *observability.Metrics,
	logger *zap.Logger,
) *MetricsService {
	return &MetricsService{
		repo:            repo,
		rates:           rates,
		narrator:        narrator,
		aggregator:      metrics.NewAggregator(),
		minTransactions: minTransactions,
		metrics:         m,
		logger:          logger,
	}
}

// Compute fetches the period (and comparison period, and current rate)
// concurrently and aggregates them into a bag.
func (s *MetricsService) Compute(ctx context.Context, req MetricsRequest) (metrics.Bag, error) {
	ctx, span := tracer.Start(ctx, "MetricsService.Compute")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("metrics_compute", time.Since(start))
	}()

	if err := req.period().Validate(); err != nil {
		s.metrics.IncrReport("invalid")
		return metrics.Bag{}, err
	}
	cmp := req.comparison()
	if cmp != nil {
		if err := cmp.Validate(); err != nil {
			s.metrics.IncrReport("invalid")
			return metrics.Bag{}, err
		}
	}

	var (
		current    []domain.Transaction
		comparison []domain.Transaction
		rate       *domain.ExchangeRate
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		txs, err := s.repo.Fetch(gCtx, req.Start, req.End, req.Filters)
		if err != nil {
			return fmt.Errorf("fetching period: %w", err)
		}
		current = txs
		return nil
	})

	if cmp != nil {
		g.Go(func() error {
			txs, err := s.repo.Fetch(gCtx, cmp.Start, cmp.End, req.Filters)
			if err != nil {
				return fmt.Errorf("fetching comparison period: %w", err)
			}
			if txs == nil {
				txs = []domain.Transaction{}
			}
			comparison = txs
			return nil
		})
	}

	if s.rates != nil {
		// Best effort: a missing rate only drops the metadata.
		g.Go(func() error {
			r, err := s.rates.Current(gCtx)
			if err != nil {
				s.metrics.IncrExternalError("rates")
				s.logger.Warn("exchange rate unavailable", zap.Error(err))
				return nil
			}
			rate = &r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.metrics.IncrReport("error")
		s.logger.Error("metrics fetch failed", zap.Error(err))
		return metrics.Bag{}, err
	}

	if len(current) < s.minTransactions {
		s.metrics.IncrReport("insufficient_data")
		return metrics.Bag{}, &domain.ErrInsufficientData{Required: s.minTransactions, Found: len(current)}
	}

	var opts []metrics.Option
	if rate != nil {
		opts = append(opts, metrics.WithExchangeRate(*rate))
	}
	if cmp != nil {
		opts = append(opts, metrics.WithComparisonPeriod(*cmp))
	}

	bag, err := s.aggregator.Aggregate(current, comparison, req.Start, req.End, opts...)
	if err != nil {
		s.metrics.IncrReport("error")
		s.logger.Error("metrics aggregation failed", zap.Error(err))
		return metrics.Bag{}, fmt.Errorf("aggregating metrics: %w", err)
	}

	s.metrics.IncrReport("success")
	span.SetAttributes(
		attribute.Int("metrics.transactions", len(current)),
		attribute.Bool("metrics.comparison", cmp != nil),
	)
	return bag, nil
}

// Insights computes the bag and narrates it with the operational or
// strategic variant. Narrative failures fall back to a data summary.
func (s *MetricsService) Insights(ctx context.Context, req MetricsRequest, kind string) (*Insight, error) {
	ctx, span := tracer.Start(ctx, "MetricsService.Insights")
	defer span.End()

	variant, ok := narrative.VariantFor(kind)
	if !ok {
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be operational or strategic"}
	}
	span.SetAttributes(attribute.String("insight.kind", variant.Name))

	bag, err := s.Compute(ctx, req)
	if err != nil {
		return nil, err
	}

	res := s.narrator.Generate(ctx, variant, narrative.Input{Bag: bag})
	if res.Fallback {
		s.metrics.IncrFallback(variant.Name)
	}
	return &Insight{
		Kind:     variant.Name,
		Text:     res.Text,
		Fallback: res.Fallback,
		Metrics:  bag,
	}, nil
}
