package textsql_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/port"
	"github.com/boddenberg/finops-assistant-go/internal/textsql"
)

var _ port.SQLGenerator = (*textsql.Engine)(nil)

type mockLLM struct {
	reply   string
	err     error
	block   bool
	calls   int
	prompts []string
}

func (m *mockLLM) Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.reply, m.err
}

func TestEngine_ReturnsRawOutput(t *testing.T) {
	llm := &mockLLM{reply: "```sql\nSELECT 1\n```"}
	e := textsql.NewEngine(llm, textsql.Config{})

	got, err := e.Generate(context.Background(), "¿Cuánto facturamos?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != llm.reply {
		t.Errorf("expected raw reply, got %q", got)
	}
	if !strings.Contains(llm.prompts[0], "Pregunta: ¿Cuánto facturamos?") {
		t.Errorf("question missing from prompt:\n%s", llm.prompts[0])
	}
}

func TestEngine_NoRetryOnFailure(t *testing.T) {
	llm := &mockLLM{err: errors.New("boom")}
	e := textsql.NewEngine(llm, textsql.Config{})

	if _, err := e.Generate(context.Background(), "gastos de marzo", nil); err == nil {
		t.Fatal("expected error")
	}
	if llm.calls != 1 {
		t.Errorf("expected a single call, got %d", llm.calls)
	}
}

func TestEngine_Timeout(t *testing.T) {
	llm := &mockLLM{block: true}
	e := textsql.NewEngine(llm, textsql.Config{Timeout: 20 * time.Millisecond})

	_, err := e.Generate(context.Background(), "gastos de marzo", nil)
	var te *domain.ErrTimeout
	if !errors.As(err, &te) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestEngine_EmptyQuestion(t *testing.T) {
	llm := &mockLLM{}
	e := textsql.NewEngine(llm, textsql.Config{})

	_, err := e.Generate(context.Background(), "   ", nil)
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if llm.calls != 0 {
		t.Error("LLM should not be called")
	}
}

func TestBuildPrompt_History(t *testing.T) {
	var history []domain.ConversationTurn
	for i := 0; i < 10; i++ {
		history = append(history, domain.ConversationTurn{Role: "user", Content: fmt.Sprintf("turno-%d", i)})
	}

	p := textsql.BuildPrompt(textsql.Config{Dialect: "postgres", Table: "transacciones"}, "y en abril?", history)

	if strings.Contains(p, "turno-3") {
		t.Error("old turns should be dropped")
	}
	for i := 4; i < 10; i++ {
		if !strings.Contains(p, fmt.Sprintf("turno-%d", i)) {
			t.Errorf("turn %d missing", i)
		}
	}
	if !strings.Contains(p, "Dialecto: postgres") || !strings.Contains(p, "monto_usd") {
		t.Error("prompt should describe dialect and schema")
	}
}
