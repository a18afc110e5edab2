package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// Pipeline stages reported by the question pipeline.
var Stages = []string{"validate_question", "generate", "extract", "validate_sql", "execute", "narrative"}

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	questionsTotal  *prometheus.CounterVec
	stageFailures   *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	reportsTotal    *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finops_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		questionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finops_questions_total",
				Help: "Questions answered, by final status.",
			},
			[]string{"status"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finops_pipeline_stage_failures_total",
				Help: "Question pipeline failures by stage.",
			},
			[]string{"stage"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finops_narrative_fallbacks_total",
				Help: "Narratives served from the data fallback.",
			},
			[]string{"variant"},
		),
		reportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finops_metric_reports_total",
				Help: "Metric bags computed, by status.",
			},
			[]string{"status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finops_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finops_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finops_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finops_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
	}
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrQuestion counts an answered question by status.
func (m *Metrics) IncrQuestion(status string) {
	m.questionsTotal.WithLabelValues(status).Inc()
}

// IncrStageFailure counts a pipeline stage failure.
func (m *Metrics) IncrStageFailure(stage string) {
	m.stageFailures.WithLabelValues(stage).Inc()
}

// IncrFallback counts a fallback narrative.
func (m *Metrics) IncrFallback(variant string) {
	m.fallbacks.WithLabelValues(variant).Inc()
}

// IncrReport counts a metrics computation by status.
func (m *Metrics) IncrReport(status string) {
	m.reportsTotal.WithLabelValues(status).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// AssistantSnapshot returns the counters behind GET /v1/metrics/assistant.
// Prometheus counters are cumulative, so every rate is since process start.
func (m *Metrics) AssistantSnapshot() *domain.AssistantMetrics {
	success := getCounterValue(m.questionsTotal, "success")
	errored := getCounterValue(m.questionsTotal, "error")
	total := success + errored

	failures := make(map[string]int64, len(Stages))
	for _, s := range Stages {
		failures[s] = int64(getCounterValue(m.stageFailures, s))
	}

	fallbacks := getCounterValue(m.fallbacks, "answer")
	hits := getCounterValue(m.cacheHits, "rates")
	misses := getCounterValue(m.cacheMisses, "rates")

	snap := &domain.AssistantMetrics{
		QuestionsTotal: int64(total),
		StageFailures:  failures,
		TokensUsed:     int64(getCounterValue(m.tokensUsed, "prompt") + getCounterValue(m.tokensUsed, "completion")),
		ExternalErrors: int64(getCounterValue(m.externalErrors, "llm") + getCounterValue(m.externalErrors, "rates")),
	}
	if total > 0 {
		snap.ErrorRate = errored / total
		snap.FallbackRate = fallbacks / total
	}
	if hits+misses > 0 {
		snap.RateCacheHitPct = hits / (hits + misses)
	}
	return snap
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
