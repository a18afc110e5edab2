package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/handler"
	"github.com/boddenberg/finops-assistant-go/internal/infra/observability"
	"github.com/boddenberg/finops-assistant-go/internal/metrics"
	"github.com/boddenberg/finops-assistant-go/internal/port"
	"github.com/boddenberg/finops-assistant-go/internal/service"
)

// --- Mocks ---

type mockAnswerer struct {
	question string
}

func (m *mockAnswerer) AnswerQuestion(_ context.Context, q string, _ []domain.ConversationTurn) *domain.Answer {
	m.question = q
	return &domain.Answer{ID: "a-1", Question: q, Answer: "ok", Status: domain.StatusSuccess, RawData: []domain.Row{}}
}

type mockReporter struct {
	req  service.MetricsRequest
	kind string
	err  error
}

func (m *mockReporter) Compute(_ context.Context, req service.MetricsRequest) (metrics.Bag, error) {
	m.req = req
	if m.err != nil {
		return metrics.Bag{}, m.err
	}
	return metrics.Aggregate([]domain.Transaction{}, nil, req.Start, req.End)
}

func (m *mockReporter) Insights(ctx context.Context, req service.MetricsRequest, kind string) (*service.Insight, error) {
	m.kind = kind
	bag, err := m.Compute(ctx, req)
	if err != nil {
		return nil, err
	}
	return &service.Insight{Kind: kind, Text: "Resumen", Fallback: true, Metrics: bag}, nil
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

type mockRates struct{}

func (mockRates) Current(context.Context) (domain.ExchangeRate, error) {
	return domain.ExchangeRate{
		From: domain.CurrencyUSD, To: domain.CurrencyUYU,
		Rate: decimal.RequireFromString("40.25"),
		AsOf: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
	}, nil
}

func newRouter(d handler.Deps) http.Handler {
	if d.Metrics == nil {
		d.Metrics = observability.NewMetrics()
	}
	d.Logger = zap.NewNop()
	return handler.NewRouter(d)
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Operational ---

func TestHealthz(t *testing.T) {
	rec := do(t, newRouter(handler.Deps{}), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newRouter(handler.Deps{Checks: map[string]port.Pinger{"ledger": mockPinger{}}})

	rec := do(t, router, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_DependencyDown(t *testing.T) {
	router := newRouter(handler.Deps{Checks: map[string]port.Pinger{
		"ledger": mockPinger{},
		"redis":  mockPinger{err: errors.New("connection refused")},
	}})

	rec := do(t, router, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var status domain.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if len(status.Services) != 2 || status.Services[1].Name != "redis" || status.Services[1].Status != "unhealthy" {
		t.Errorf("unexpected services %+v", status.Services)
	}
}

func TestMetrics(t *testing.T) {
	rec := do(t, newRouter(handler.Deps{}), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAssistantMetrics(t *testing.T) {
	rec := do(t, newRouter(handler.Deps{}), http.MethodGet, "/v1/metrics/assistant", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stageFailures") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

// --- Questions ---

func TestQuestions(t *testing.T) {
	svc := &mockAnswerer{}
	router := newRouter(handler.Deps{Questions: svc})

	rec := do(t, router, http.MethodPost, "/v1/questions", `{"question":"¿Cuánto facturamos?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.question != "¿Cuánto facturamos?" {
		t.Errorf("unexpected question %q", svc.question)
	}
	var a domain.Answer
	if err := json.NewDecoder(rec.Body).Decode(&a); err != nil {
		t.Fatal(err)
	}
	if a.Status != domain.StatusSuccess {
		t.Errorf("unexpected answer %+v", a)
	}
}

func TestQuestions_InvalidBody(t *testing.T) {
	router := newRouter(handler.Deps{Questions: &mockAnswerer{}})

	rec := do(t, router, http.MethodPost, "/v1/questions", `{"question":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestQuestions_NotConfigured(t *testing.T) {
	rec := do(t, newRouter(handler.Deps{}), http.MethodPost, "/v1/questions", `{"question":"x"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

// --- Metrics ---

func TestMetricsEndpoint_Month(t *testing.T) {
	svc := &mockReporter{}
	router := newRouter(handler.Deps{Reports: svc})

	rec := do(t, router, http.MethodGet, "/v1/metrics?month=2025-03&compare=previous&type=INGRESO,gasto", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := svc.req.Start.Format("2006-01-02"); got != "2025-03-01" {
		t.Errorf("unexpected start %s", got)
	}
	if got := svc.req.End.Format("2006-01-02"); got != "2025-03-31" {
		t.Errorf("unexpected end %s", got)
	}
	if !svc.req.ComparePrevious {
		t.Error("expected previous-period comparison")
	}
	if len(svc.req.Filters.Types) != 2 || svc.req.Filters.Types[1] != domain.TypeExpense {
		t.Errorf("unexpected types %v", svc.req.Filters.Types)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["period_label"] != "Marzo 2025" {
		t.Errorf("unexpected label %v", body["period_label"])
	}
}

func TestMetricsEndpoint_ExplicitComparison(t *testing.T) {
	svc := &mockReporter{}
	router := newRouter(handler.Deps{Reports: svc})

	rec := do(t, router, http.MethodGet,
		"/v1/metrics?start=2025-01-01&end=2025-03-31&compare_start=2024-01-01&compare_end=2024-03-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.req.Compare == nil || svc.req.Compare.Start.Year() != 2024 {
		t.Errorf("unexpected comparison %+v", svc.req.Compare)
	}
}

func TestMetricsEndpoint_Validation(t *testing.T) {
	router := newRouter(handler.Deps{Reports: &mockReporter{}})

	for _, path := range []string{
		"/v1/metrics",
		"/v1/metrics?month=marzo",
		"/v1/metrics?month=2025-03&compare=lastyear",
		"/v1/metrics?month=2025-03&type=TRANSFER",
	} {
		if rec := do(t, router, http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint_InsufficientData(t *testing.T) {
	router := newRouter(handler.Deps{Reports: &mockReporter{err: &domain.ErrInsufficientData{Required: 5, Found: 1}}})

	rec := do(t, router, http.MethodGet, "/v1/metrics?month=2025-03", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestInsights(t *testing.T) {
	svc := &mockReporter{}
	router := newRouter(handler.Deps{Reports: svc})

	rec := do(t, router, http.MethodPost, "/v1/insights", `{"month":"2025-03","kind":"strategic"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.kind != "strategic" {
		t.Errorf("unexpected kind %q", svc.kind)
	}
}

func TestInsights_DefaultKind(t *testing.T) {
	svc := &mockReporter{}
	router := newRouter(handler.Deps{Reports: svc})

	if rec := do(t, router, http.MethodPost, "/v1/insights", `{"month":"2025-03"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.kind != "operational" {
		t.Errorf("unexpected kind %q", svc.kind)
	}
}

// --- Exchange rate ---

func TestExchangeRate(t *testing.T) {
	rec := do(t, newRouter(handler.Deps{Rates: mockRates{}}), http.MethodGet, "/v1/exchange-rate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"rate":"40.25"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestExchangeRate_NotConfigured(t *testing.T) {
	rec := do(t, newRouter(handler.Deps{}), http.MethodGet, "/v1/exchange-rate", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

// --- Auth ---

func sign(t *testing.T, method jwt.SigningMethod, secret string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "estudio",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBearerAuth(t *testing.T) {
	const secret = "test-secret"
	router := newRouter(handler.Deps{JWTSecret: secret})
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bad format", "Token abc", http.StatusUnauthorized},
		{"valid", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, future), http.StatusOK},
		{"wrong secret", "Bearer " + sign(t, jwt.SigningMethodHS256, "other", future), http.StatusUnauthorized},
		{"wrong algorithm", "Bearer " + sign(t, jwt.SigningMethodHS384, secret, future), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, jwt.SigningMethodHS256, secret, time.Now().Add(-time.Hour)), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var headers []string
			if tc.header != "" {
				headers = []string{"Authorization", tc.header}
			}
			rec := do(t, router, http.MethodGet, "/v1/metrics/assistant", "", headers...)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestBearerAuth_OperationalRoutesStayOpen(t *testing.T) {
	router := newRouter(handler.Deps{JWTSecret: "test-secret"})

	if rec := do(t, router, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
