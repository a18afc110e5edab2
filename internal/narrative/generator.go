// Package narrative turns query results and metric bags into short Spanish
// prose through an LLM, falling back to a plain rendering of the data when
// the provider fails.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/infra/resilience"
	"github.com/boddenberg/finops-assistant-go/internal/metrics"
	"github.com/boddenberg/finops-assistant-go/internal/port"
	"github.com/boddenberg/finops-assistant-go/internal/query"
)

var tracer = otel.Tracer("narrative")

// MaxLines caps every narrative.
const MaxLines = 6

var (
	// ErrEmptyResponse means the model returned nothing usable.
	ErrEmptyResponse = errors.New("narrative: empty response")
	// ErrUniquenessClaim means the model claimed "the only X" for a result
	// whose count is not exactly one.
	ErrUniquenessClaim = errors.New("narrative: uniqueness claim not backed by data")
)

// Input is everything a variant may need. Answer uses Question, SQL and Rows;
// the insight variants use Bag.
type Input struct {
	Question string
	SQL      string
	Rows     []domain.Row
	Currency domain.Currency
	Bag      metrics.Bag
}

// Variant plugs three pure functions into the shared pipeline.
type Variant struct {
	Name          string
	BuildPrompt   func(in Input) string
	ParseResponse func(raw string, in Input) (string, error)
	BuildFallback func(in Input) string
}

// Result is always usable: Text is never empty.
type Result struct {
	Text     string
	Fallback bool
	Attempts int
	Err      error
}

// Config bounds the LLM calls.
type Config struct {
	Retries     int
	RetryDelay  time.Duration
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// Generator runs variants against an LLM.
type Generator struct {
	llm    port.LLMClient
	cfg    Config
	logger *zap.Logger
}

// NewGenerator creates a Generator. A nil llm always yields the fallback.
func NewGenerator(llm port.LLMClient, cfg Config, logger *zap.Logger) *Generator {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	return &Generator{llm: llm, cfg: cfg, logger: logger}
}

// Generate builds the prompt, calls the model with fixed-delay retries, and
// parses the reply. Any failure returns the variant's fallback text instead.
func (g *Generator) Generate(ctx context.Context, v Variant, in Input) Result {
	ctx, span := tracer.Start(ctx, "Narrative.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("narrative.variant", v.Name))

	if g.llm == nil {
		return g.fallback(v, in, 0, errors.New("no llm configured"))
	}

	prompt := v.BuildPrompt(in)
	var text string
	attempts := 0

	err := resilience.RetryFixed(ctx, g.cfg.Retries, g.cfg.RetryDelay, func(attempt int) error {
		attempts = attempt
		callCtx := ctx
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()
		}

		raw, err := g.llm.Complete(callCtx, prompt, g.cfg.MaxTokens, g.cfg.Temperature)
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return &domain.ErrTimeout{Operation: "narrative." + v.Name}
			}
			return err
		}
		parsed, err := v.ParseResponse(raw, in)
		if err != nil {
			return err
		}
		text = parsed
		return nil
	})

	span.SetAttributes(attribute.Int("narrative.attempts", attempts))
	if err != nil {
		return g.fallback(v, in, attempts, err)
	}
	return Result{Text: text, Attempts: attempts}
}

func (g *Generator) fallback(v Variant, in Input, attempts int, cause error) Result {
	g.logger.Warn("narrative provider unavailable, using fallback",
		zap.String("variant", v.Name),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)
	text := v.BuildFallback(in)
	if strings.TrimSpace(text) == "" {
		text = NotSpecified
	}
	return Result{Text: text, Fallback: true, Attempts: attempts, Err: cause}
}

// ============================================================
// Response cleaning shared by all variants
// ============================================================

var (
	fenceLine    = regexp.MustCompile("^```")
	headingMark  = regexp.MustCompile(`^#{1,6}\s*`)
	emphasis     = regexp.MustCompile(`\*\*|__`)
	uniqueClaims = regexp.MustCompile(`\b(unico|unica|unicos|unicas|the only)\b`)
)

// CleanResponse strips fences and markdown, drops blank lines, caps the
// text at MaxLines, and rejects uniqueness claims when count != 1.
func CleanResponse(raw string, count int) (string, error) {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || fenceLine.MatchString(line) {
			continue
		}
		line = headingMark.ReplaceAllString(line, "")
		line = emphasis.ReplaceAllString(line, "")
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", ErrEmptyResponse
	}
	if len(lines) > MaxLines {
		lines = lines[:MaxLines]
	}

	text := strings.Join(lines, "\n")
	if count != 1 && uniqueClaims.MatchString(query.Fold(text)) {
		return "", fmt.Errorf("%w (count=%d)", ErrUniquenessClaim, count)
	}
	return text, nil
}
