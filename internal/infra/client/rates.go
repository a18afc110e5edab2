package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// rateResponse is the upstream payload: {"base":"USD","quote":"UYU","rate":40.25,"date":"2025-03-31"}.
type rateResponse struct {
	Base  string          `json:"base"`
	Quote string          `json:"quote"`
	Rate  decimal.Decimal `json:"rate"`
	Date  string          `json:"date"`
}

// RateClient fetches the USD→UYU rate from an HTTP JSON endpoint.
type RateClient struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	now        func() time.Time
}

// NewRateClient creates a new RateClient.
func NewRateClient(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *RateClient {
	return &RateClient{
		httpClient: httpClient,
		url:        url,
		cb:         cb,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Fetch gets a fresh rate with retry, circuit breaker, and tracing.
func (c *RateClient) Fetch(ctx context.Context) (domain.ExchangeRate, error) {
	ctx, span := tracer.Start(ctx, "RateClient.Fetch")
	defer span.End()

	var payload rateResponse

	_, err := resilience.Execute(c.cb, "rates", func() (struct{}, error) {
		return struct{}{}, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("rate API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&payload)
		})
	})
	if err != nil {
		return domain.ExchangeRate{}, &domain.ErrExternalService{Service: "rates", Err: err}
	}

	if !payload.Rate.IsPositive() {
		return domain.ExchangeRate{}, &domain.ErrExternalService{
			Service: "rates",
			Err:     fmt.Errorf("non-positive rate %s", payload.Rate),
		}
	}

	asOf := c.now()
	if payload.Date != "" {
		if d, err := time.Parse("2006-01-02", payload.Date); err == nil {
			asOf = d
		} else if d, err := time.Parse(time.RFC3339, payload.Date); err == nil {
			asOf = d
		}
	}

	span.SetAttributes(attribute.String("rate.value", payload.Rate.String()))
	return domain.ExchangeRate{
		From: domain.CurrencyUSD,
		To:   domain.CurrencyUYU,
		Rate: payload.Rate,
		AsOf: asOf,
	}, nil
}
