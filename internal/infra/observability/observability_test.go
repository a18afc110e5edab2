package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/infra/observability"
)

func TestAssistantSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrQuestion("success")
	m.IncrQuestion("success")
	m.IncrQuestion("success")
	m.IncrQuestion("error")
	m.IncrStageFailure("execute")
	m.IncrFallback("answer")
	m.IncrFallback("answer")
	m.RecordTokens(100, 20)
	m.IncrCacheHit("rates")
	m.IncrCacheMiss("rates")

	snap := m.AssistantSnapshot()

	if snap.QuestionsTotal != 4 {
		t.Errorf("expected 4 questions, got %d", snap.QuestionsTotal)
	}
	if snap.ErrorRate != 0.25 {
		t.Errorf("expected error rate 0.25, got %f", snap.ErrorRate)
	}
	if snap.FallbackRate != 0.5 {
		t.Errorf("expected fallback rate 0.5, got %f", snap.FallbackRate)
	}
	if snap.StageFailures["execute"] != 1 || snap.StageFailures["generate"] != 0 {
		t.Errorf("unexpected stage failures: %v", snap.StageFailures)
	}
	if snap.TokensUsed != 120 {
		t.Errorf("expected 120 tokens, got %d", snap.TokensUsed)
	}
	if snap.RateCacheHitPct != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", snap.RateCacheHitPct)
	}
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()
	a.IncrQuestion("success")

	if b.AssistantSnapshot().QuestionsTotal != 0 {
		t.Error("expected registries to be independent")
	}
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer(context.Background(), "finops-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestRequestLogger_RecordsRouteLatency(t *testing.T) {
	m := observability.NewMetrics()
	r := chi.NewRouter()
	r.Use(observability.RequestLogger(zap.NewNop(), m))
	r.Use(observability.TracingMiddleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", rec.Code)
	}

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() != "finops_operation_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "operation" && l.GetValue() == "http GET /items/{id}" {
					found = metric.GetHistogram().GetSampleCount() == 1
				}
			}
		}
	}
	if !found {
		t.Error("expected one latency sample labelled with the route pattern")
	}
}

func TestRequestLogger_NilMetrics(t *testing.T) {
	h := observability.RequestLogger(zap.NewNop(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
