package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/port"
	"github.com/boddenberg/finops-assistant-go/internal/service"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// periodRequest is shared by GET /v1/metrics (query string) and
// POST /v1/insights (JSON body).
type periodRequest struct {
	Month        string   `json:"month"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Compare      string   `json:"compare"`
	CompareStart string   `json:"compare_start"`
	CompareEnd   string   `json:"compare_end"`
	Types        []string `json:"types"`
	Category     string   `json:"category"`
	Locality     string   `json:"locality"`
	Counterparty string   `json:"counterparty"`
}

type insightsRequest struct {
	periodRequest
	Kind string `json:"kind"`
}

func periodFromQuery(q url.Values) periodRequest {
	var types []string
	for _, v := range q["type"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}
	return periodRequest{
		Month:        q.Get("month"),
		Start:        q.Get("start"),
		End:          q.Get("end"),
		Compare:      q.Get("compare"),
		CompareStart: q.Get("compare_start"),
		CompareEnd:   q.Get("compare_end"),
		Types:        types,
		Category:     q.Get("category"),
		Locality:     q.Get("locality"),
		Counterparty: q.Get("counterparty"),
	}
}

// toMetricsRequest resolves month or start/end into a period. month wins.
func (p periodRequest) toMetricsRequest() (service.MetricsRequest, error) {
	var req service.MetricsRequest

	switch {
	case p.Month != "":
		m, err := time.Parse(monthLayout, p.Month)
		if err != nil {
			return req, &domain.ErrValidation{Field: "month", Message: "expected YYYY-MM"}
		}
		req.Start = m
		req.End = m.AddDate(0, 1, -1)
	case p.Start != "" && p.End != "":
		start, err := time.Parse(dateLayout, p.Start)
		if err != nil {
			return req, &domain.ErrValidation{Field: "start", Message: "expected YYYY-MM-DD"}
		}
		end, err := time.Parse(dateLayout, p.End)
		if err != nil {
			return req, &domain.ErrValidation{Field: "end", Message: "expected YYYY-MM-DD"}
		}
		req.Start, req.End = start, end
	default:
		return req, &domain.ErrValidation{Field: "period", Message: "month or start and end are required"}
	}

	switch {
	case p.CompareStart != "" || p.CompareEnd != "":
		start, err := time.Parse(dateLayout, p.CompareStart)
		if err != nil {
			return req, &domain.ErrValidation{Field: "compare_start", Message: "expected YYYY-MM-DD"}
		}
		end, err := time.Parse(dateLayout, p.CompareEnd)
		if err != nil {
			return req, &domain.ErrValidation{Field: "compare_end", Message: "expected YYYY-MM-DD"}
		}
		req.Compare = &domain.Period{Start: start, End: end}
	case strings.EqualFold(p.Compare, "previous"):
		req.ComparePrevious = true
	case p.Compare != "":
		return req, &domain.ErrValidation{Field: "compare", Message: "only \"previous\" is supported"}
	}

	for _, t := range p.Types {
		tt, err := domain.ParseTransactionType(t)
		if err != nil {
			return req, &domain.ErrValidation{Field: "type", Message: "unknown transaction type " + t}
		}
		req.Filters.Types = append(req.Filters.Types, tt)
	}
	req.Filters.Category = p.Category
	req.Filters.Locality = p.Locality
	req.Filters.Counterparty = p.Counterparty
	return req, nil
}

func metricsHandler(svc MetricsReporter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/metrics")
		defer span.End()

		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "metrics not configured")
			return
		}

		req, err := periodFromQuery(r.URL.Query()).toMetricsRequest()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		bag, err := svc.Compute(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, bag)
	}
}

func insightsHandler(svc MetricsReporter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/insights")
		defer span.End()

		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "metrics not configured")
			return
		}

		var body insightsRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Kind == "" {
			body.Kind = "operational"
		}

		req, err := body.toMetricsRequest()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		insight, err := svc.Insights(ctx, req, body.Kind)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, insight)
	}
}

func exchangeRateHandler(rates port.RateProvider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/exchange-rate")
		defer span.End()

		if rates == nil {
			writeError(w, http.StatusServiceUnavailable, "exchange rate source not configured")
			return
		}

		rate, err := rates.Current(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rate)
	}
}
