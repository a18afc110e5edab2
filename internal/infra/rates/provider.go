// Package rates serves the current USD→UYU exchange rate from a cache with
// an explicit staleness window.
package rates

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/port"
)

const (
	cacheKey = "rate:usd_uyu"
	// DefaultStaleness is how long a fetched rate is served without refresh.
	DefaultStaleness = 24 * time.Hour
	// entries outlive the staleness window so a stale rate can still be
	// served while upstream is down.
	retentionFactor = 7
)

// Entry is what the cache stores.
type Entry struct {
	Rate      domain.ExchangeRate `json:"rate"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// CacheRecorder counts cache hits and misses.
type CacheRecorder interface {
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
}

// Provider implements port.RateProvider.
type Provider struct {
	source    port.RateSource
	store     port.Cache[Entry]
	staleness time.Duration
	group     singleflight.Group
	recorder  CacheRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// Option customises a Provider.
type Option func(*Provider)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(p *Provider) { p.now = now } }

// WithRecorder reports cache hits and misses.
func WithRecorder(r CacheRecorder) Option { return func(p *Provider) { p.recorder = r } }

// NewProvider creates a Provider. staleness <= 0 means DefaultStaleness.
func NewProvider(source port.RateSource, store port.Cache[Entry], staleness time.Duration, logger *zap.Logger, opts ...Option) *Provider {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	p := &Provider{
		source:    source,
		store:     store,
		staleness: staleness,
		logger:    logger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Current returns the cached rate while it is fresh. Otherwise it refreshes
// from the source, collapsing concurrent refreshes into one call. When the
// source fails, a stale cached rate is returned with Stale set.
func (p *Provider) Current(ctx context.Context) (domain.ExchangeRate, error) {
	cached, ok, err := p.store.Get(ctx, cacheKey)
	if err != nil {
		p.logger.Warn("rate cache read failed", zap.Error(err))
		ok = false
	}
	if ok && p.now().Sub(cached.FetchedAt) < p.staleness {
		p.hit()
		return cached.Rate, nil
	}
	p.miss()

	v, err, _ := p.group.Do(cacheKey, func() (any, error) {
		return p.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		if ok {
			p.logger.Warn("serving stale exchange rate",
				zap.Time("fetched_at", cached.FetchedAt),
				zap.Error(err),
			)
			stale := cached.Rate
			stale.Stale = true
			return stale, nil
		}
		return domain.ExchangeRate{}, fmt.Errorf("refreshing exchange rate: %w", err)
	}
	return v.(domain.ExchangeRate), nil
}

func (p *Provider) refresh(ctx context.Context) (domain.ExchangeRate, error) {
	rate, err := p.source.Fetch(ctx)
	if err != nil {
		return domain.ExchangeRate{}, err
	}
	entry := Entry{Rate: rate, FetchedAt: p.now()}
	if err := p.store.Set(ctx, cacheKey, entry, p.staleness*retentionFactor); err != nil {
		p.logger.Warn("rate cache write failed", zap.Error(err))
	}
	return rate, nil
}

func (p *Provider) hit() {
	if p.recorder != nil {
		p.recorder.IncrCacheHit("rates")
	}
}

func (p *Provider) miss() {
	if p.recorder != nil {
		p.recorder.IncrCacheMiss("rates")
	}
}
