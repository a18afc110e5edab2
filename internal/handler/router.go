package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/infra/observability"
	"github.com/boddenberg/finops-assistant-go/internal/metrics"
	"github.com/boddenberg/finops-assistant-go/internal/port"
	"github.com/boddenberg/finops-assistant-go/internal/service"
)

var tracer = otel.Tracer("handler")

const readinessTimeout = 2 * time.Second

// QuestionAnswerer is the query pipeline.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, question string, history []domain.ConversationTurn) *domain.Answer
}

// MetricsReporter builds metric bags and narrated insights.
type MetricsReporter interface {
	Compute(ctx context.Context, req service.MetricsRequest) (metrics.Bag, error)
	Insights(ctx context.Context, req service.MetricsRequest, kind string) (*service.Insight, error)
}

// Deps are the router's collaborators. Nil services disable their routes
// with 503; Checks feed /readyz.
type Deps struct {
	Questions QuestionAnswerer
	Reports   MetricsReporter
	Rates     port.RateProvider
	Checks    map[string]port.Pinger
	Metrics   *observability.Metrics
	JWTSecret string
	Logger    *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger, d.Metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(d.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if d.JWTSecret != "" {
			r.Use(BearerAuth([]byte(d.JWTSecret), logger))
		}

		// =============================================
		// Consultas en lenguaje natural
		// =============================================
		r.Post("/questions", questionsHandler(d.Questions, logger))

		// =============================================
		// Métricas e insights
		// =============================================
		r.Get("/metrics", metricsHandler(d.Reports, logger))
		r.Post("/insights", insightsHandler(d.Reports, logger))

		// =============================================
		// Tipo de cambio
		// =============================================
		r.Get("/exchange-rate", exchangeRateHandler(d.Rates, logger))

		// =============================================
		// Observabilidad del asistente
		// =============================================
		r.Get("/metrics/assistant", assistantMetricsHandler(d.Metrics))
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   "healthy",
			Services: []domain.ServiceHealth{{Name: "finops-api", Status: "healthy"}},
		})
	}
}

// readyzHandler pings every dependency. Any failure answers 503.
func readyzHandler(checks map[string]port.Pinger, logger *zap.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := domain.HealthStatus{Status: "ready", Services: []domain.ServiceHealth{}}
		for _, name := range names {
			start := time.Now()
			err := checks[name].Ping(ctx)
			h := domain.ServiceHealth{Name: name, Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
				h.Status = "unhealthy"
				h.Error = err.Error()
				status.Status = "unavailable"
			}
			status.Services = append(status.Services, h)
		}

		code := http.StatusOK
		if status.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}

func assistantMetricsHandler(m *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, m.AssistantSnapshot())
	}
}
