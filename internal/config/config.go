package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Ledger storage
	DBDriver     string // sqlite, postgres
	DBDSN        string
	Executor     string // sql, bigquery
	BigQueryProj string
	QueryTimeout time.Duration
	QueryMaxRows int

	// LLM
	LLMProvider        string // gemini, agent
	LLMModel           string
	AgentAPIURL        string
	LLMTimeout         time.Duration
	LLMMaxConcurrency  int
	NarrativeRetries   int
	NarrativeDelay     time.Duration
	NarrativeMaxTokens int

	// Metrics engine
	MetricsMinTransactions int

	// Exchange rate
	RateAPIURL    string
	RateStaleness time.Duration
	RedisAddr     string // empty = in-memory store

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Observability
	OTLPEndpoint string

	// Auth: empty disables bearer-token checks on /v1
	JWTSecret string

	// Discord
	DiscordBotToken  string
	DiscordChannelID string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBDriver:     getEnv("DB_DRIVER", "sqlite"),
		DBDSN:        getEnv("DB_DSN", "finops.db"),
		Executor:     getEnv("EXECUTOR", "sql"),
		BigQueryProj: getEnv("BIGQUERY_PROJECT", ""),
		QueryTimeout: getEnvDuration("QUERY_TIMEOUT", 10*time.Second),
		QueryMaxRows: getEnvInt("QUERY_MAX_ROWS", 500),

		LLMProvider:        getEnv("LLM_PROVIDER", "gemini"),
		LLMModel:           getEnv("LLM_MODEL", "gemini-2.5-flash"),
		AgentAPIURL:        getEnv("AGENT_API_URL", "http://localhost:8090"),
		LLMTimeout:         getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		LLMMaxConcurrency:  getEnvInt("LLM_MAX_CONCURRENCY", 8),
		NarrativeRetries:   getEnvInt("NARRATIVE_RETRIES", 3),
		NarrativeDelay:     getEnvDuration("NARRATIVE_RETRY_DELAY", 2*time.Second),
		NarrativeMaxTokens: getEnvInt("NARRATIVE_MAX_TOKENS", 400),

		MetricsMinTransactions: getEnvInt("METRICS_MIN_TRANSACTIONS", 0),

		RateAPIURL:    getEnv("RATE_API_URL", ""),
		RateStaleness: getEnvDuration("RATE_STALENESS", 24*time.Hour),
		RedisAddr:     getEnv("REDIS_ADDR", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		DiscordBotToken:  getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID: getEnv("DISCORD_CHANNEL_ID", ""),
	}
}

// LoadDotEnv loads path into the environment without overriding
// variables that are already set.
func LoadDotEnv(path string) error {
	return godotenv.Load(path)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
