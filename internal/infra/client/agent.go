package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/infra/resilience"
)

// TokenRecorder receives token usage reported by the agent.
type TokenRecorder interface {
	RecordTokens(prompt, completion int)
}

// AgentClient calls an HTTP completion agent. It does not retry: SQL
// generation must fail fast and narrative generation retries on its own.
type AgentClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	tokens     TokenRecorder
}

// NewAgentClient creates a new AgentClient. tokens may be nil.
func NewAgentClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, tokens TokenRecorder) *AgentClient {
	return &AgentClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		tokens:     tokens,
	}
}

// Complete sends prompt to the agent and returns the generated text.
func (c *AgentClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	ctx, span := tracer.Start(ctx, "AgentClient.Complete")
	defer span.End()
	span.SetAttributes(attribute.Int("llm.max_tokens", maxTokens))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return "", &domain.ErrTimeout{Operation: "agent.acquire"}
	}
	defer c.bulkhead.Release()

	out, err := resilience.Execute(c.cb, "agent", func() (*domain.CompletionResponse, error) {
		body, err := json.Marshal(domain.CompletionRequest{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature})
		if err != nil {
			return nil, err
		}

		url := fmt.Sprintf("%s/v1/completions", c.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("agent API returned status %d", resp.StatusCode)
		}

		var completion domain.CompletionResponse
		if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
			return nil, fmt.Errorf("decoding agent response: %w", err)
		}
		return &completion, nil
	})
	if err != nil {
		return "", &domain.ErrExternalService{Service: "agent", Err: err}
	}

	if c.tokens != nil {
		c.tokens.RecordTokens(out.TokensUsed.PromptTokens, out.TokensUsed.CompletionTokens)
	}
	span.SetAttributes(attribute.Int("llm.tokens.total", out.TokensUsed.TotalTokens))
	return out.Text, nil
}
