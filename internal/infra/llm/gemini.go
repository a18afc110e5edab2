// Package llm adapts Google Gemini to port.LLMClient.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/infra/resilience"
)

var tracer = otel.Tracer("llm")

// DefaultModel is fast and good enough for SQL and short prose.
const DefaultModel = "gemini-2.5-flash"

// ContentGenerator is the subset of *genai.Models used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// TokenRecorder receives token usage reported by the model.
type TokenRecorder interface {
	RecordTokens(prompt, completion int)
}

// Gemini calls a Gemini model through the circuit breaker.
type Gemini struct {
	models   ContentGenerator
	model    string
	cb       *gobreaker.CircuitBreaker
	bulkhead *resilience.Bulkhead
	tokens   TokenRecorder
}

// NewGemini creates a genai client. Backend selection (Gemini API or Vertex)
// follows the GOOGLE_* environment variables read by genai.
func NewGemini(ctx context.Context, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, tokens TokenRecorder) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return NewGeminiWith(client.Models, model, cb, cfg, tokens), nil
}

// NewGeminiWith wraps an existing generator.
func NewGeminiWith(models ContentGenerator, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, tokens TokenRecorder) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		models:   models,
		model:    model,
		cb:       cb,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		tokens:   tokens,
	}
}

// Complete sends a single user turn and returns the text of the reply.
func (g *Gemini) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	ctx, span := tracer.Start(ctx, "Gemini.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	if err := g.bulkhead.Acquire(ctx); err != nil {
		return "", &domain.ErrTimeout{Operation: "gemini.acquire"}
	}
	defer g.bulkhead.Release()

	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(maxTokens),
	}

	resp, err := resilience.Execute(g.cb, "gemini", func() (*genai.GenerateContentResponse, error) {
		return g.models.GenerateContent(ctx, g.model, contents, config)
	})
	if err != nil {
		return "", &domain.ErrExternalService{Service: "gemini", Err: err}
	}
	if resp == nil {
		return "", &domain.ErrExternalService{Service: "gemini", Err: errors.New("empty response")}
	}

	if u := resp.UsageMetadata; u != nil && g.tokens != nil {
		g.tokens.RecordTokens(int(u.PromptTokenCount), int(u.CandidatesTokenCount))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &domain.ErrExternalService{Service: "gemini", Err: errors.New("no text in response")}
	}
	return text, nil
}
