package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /readyz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// AssistantMetrics is returned by GET /v1/metrics/assistant.
type AssistantMetrics struct {
	QuestionsTotal  int64            `json:"questionsTotal"`
	StageFailures   map[string]int64 `json:"stageFailures"`
	FallbackRate    float64          `json:"fallbackRate"`
	ErrorRate       float64          `json:"errorRate"`
	TokensUsed      int64            `json:"tokensUsed"`
	ExternalErrors  int64            `json:"externalErrors"`
	RateCacheHitPct float64          `json:"rateCacheHitRate"`
}
