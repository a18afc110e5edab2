package narrative_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/metrics"
	"github.com/boddenberg/finops-assistant-go/internal/narrative"
)

// ============================================================
// Mock LLM
// ============================================================

type mockLLM struct {
	replies []string
	errs    []error
	block   bool
	calls   int
	prompts []string
}

func (m *mockLLM) Complete(ctx context.Context, prompt string, _ int, _ float32) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	i := m.calls - 1
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return "", errors.New("no reply scripted")
}

func newGenerator(llm *mockLLM) *narrative.Generator {
	cfg := narrative.Config{Retries: 3, RetryDelay: time.Millisecond, Timeout: 50 * time.Millisecond}
	if llm == nil {
		return narrative.NewGenerator(nil, cfg, zap.NewNop())
	}
	return narrative.NewGenerator(llm, cfg, zap.NewNop())
}

var sampleRows = []domain.Row{
	{"categoria": "Honorarios", "total": "150000.00"},
	{"categoria": "Consultoría", "total": "42000.50"},
}

// ============================================================
// Generator
// ============================================================

func TestGenerate_Success(t *testing.T) {
	llm := &mockLLM{replies: []string{"```\nLos ingresos fueron de 150.000,00.\n```"}}
	res := newGenerator(llm).Generate(context.Background(), narrative.Answer, narrative.Input{Question: "¿ingresos?", Rows: sampleRows})

	if res.Fallback {
		t.Fatalf("expected no fallback, got err %v", res.Err)
	}
	if res.Text != "Los ingresos fueron de 150.000,00." {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if !strings.Contains(llm.prompts[0], "¿ingresos?") {
		t.Error("expected question in prompt")
	}
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	llm := &mockLLM{
		errs:    []error{errors.New("503"), nil},
		replies: []string{"", "Todo bien."},
	}
	res := newGenerator(llm).Generate(context.Background(), narrative.Answer, narrative.Input{Rows: sampleRows})

	if res.Fallback || res.Text != "Todo bien." {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", res.Attempts)
	}
}

func TestGenerate_FallbackAfterExhaustingRetries(t *testing.T) {
	boom := errors.New("provider down")
	llm := &mockLLM{errs: []error{boom, boom, boom}}
	res := newGenerator(llm).Generate(context.Background(), narrative.Answer, narrative.Input{Rows: sampleRows})

	if !res.Fallback {
		t.Fatal("expected fallback")
	}
	if llm.calls != 3 {
		t.Errorf("expected 3 calls, got %d", llm.calls)
	}
	if !strings.Contains(res.Text, "Honorarios") || !strings.Contains(res.Text, "150.000,00") {
		t.Errorf("expected fallback built from rows, got %q", res.Text)
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("expected cause to be kept, got %v", res.Err)
	}
}

func TestGenerate_TimeoutFallsBack(t *testing.T) {
	llm := &mockLLM{block: true}
	res := newGenerator(llm).Generate(context.Background(), narrative.Answer, narrative.Input{Rows: sampleRows})

	if !res.Fallback || res.Text == "" {
		t.Fatalf("expected non-empty fallback, got %+v", res)
	}
	var timeout *domain.ErrTimeout
	if !errors.As(res.Err, &timeout) {
		t.Errorf("expected ErrTimeout, got %v", res.Err)
	}
}

func TestGenerate_UniquenessClaimRejected(t *testing.T) {
	claim := "Honorarios es la única categoría."
	llm := &mockLLM{replies: []string{claim, claim, claim}}
	res := newGenerator(llm).Generate(context.Background(), narrative.Answer, narrative.Input{Rows: sampleRows})

	if !res.Fallback {
		t.Fatal("expected fallback when every reply claims uniqueness")
	}
	if !errors.Is(res.Err, narrative.ErrUniquenessClaim) {
		t.Errorf("expected ErrUniquenessClaim, got %v", res.Err)
	}
}

func TestGenerate_NilLLM(t *testing.T) {
	res := newGenerator(nil).Generate(context.Background(), narrative.Answer, narrative.Input{})
	if !res.Fallback || res.Text != "No se encontraron resultados para la consulta." {
		t.Errorf("unexpected result: %+v", res)
	}
}

// ============================================================
// Response cleaning
// ============================================================

func TestCleanResponse_CapsLines(t *testing.T) {
	raw := "# Resumen\n**uno**\ndos\n\ntres\ncuatro\ncinco\nseis\nsiete"
	got, err := narrative.CleanResponse(raw, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(got, "\n")
	if len(lines) != narrative.MaxLines {
		t.Fatalf("expected %d lines, got %d: %q", narrative.MaxLines, len(lines), got)
	}
	if lines[0] != "Resumen" || lines[1] != "uno" {
		t.Errorf("markdown not stripped: %q", lines[:2])
	}
}

func TestCleanResponse_Empty(t *testing.T) {
	if _, err := narrative.CleanResponse("```\n```", 0); !errors.Is(err, narrative.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestCleanResponse_Uniqueness(t *testing.T) {
	if _, err := narrative.CleanResponse("Es el ÚNICO cliente.", 1); err != nil {
		t.Errorf("count=1 should allow uniqueness, got %v", err)
	}
	if _, err := narrative.CleanResponse("It is the only client.", 4); !errors.Is(err, narrative.ErrUniquenessClaim) {
		t.Errorf("expected ErrUniquenessClaim, got %v", err)
	}
	if _, err := narrative.CleanResponse("Comunicación con clientes.", 4); err != nil {
		t.Errorf("substring must not trigger: %v", err)
	}
}

func TestResultCount(t *testing.T) {
	if n := narrative.ResultCount([]domain.Row{{"cantidad": int64(3)}}); n != 3 {
		t.Errorf("expected 3 from count column, got %d", n)
	}
	if n := narrative.ResultCount([]domain.Row{{"cliente": "ACME"}}); n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
	if n := narrative.ResultCount(sampleRows); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

// ============================================================
// Formatting
// ============================================================

func TestFormatMoney(t *testing.T) {
	tests := map[string]string{
		"150000":    "150.000,00",
		"-1234.5":   "-1.234,50",
		"0":         "0,00",
		"999":       "999,00",
		"1234567.8": "1.234.567,80",
	}
	for in, want := range tests {
		if got := narrative.FormatMoney(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatMoney(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, narrative.NotSpecified},
		{"", narrative.NotSpecified},
		{[]byte("Montevideo"), "Montevideo"},
		{int64(12500), "12.500"},
		{"42000.50", "42.000,50"},
		{time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), "31/03/2025"},
	}
	for _, tt := range tests {
		if got := narrative.FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ============================================================
// Insight variants
// ============================================================

func TestInsightFallbacks(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	bag, err := metrics.Aggregate([]domain.Transaction{{
		Type:      domain.TypeIncome,
		AmountUYU: decimal.NewFromInt(80000),
		AmountUSD: decimal.NewFromInt(2000),
		Category:  "Honorarios",
		Locality:  "Salto",
	}}, nil, start, end)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	op := narrative.Operational.BuildFallback(narrative.Input{Bag: bag})
	if !strings.Contains(op, "Marzo 2025") || !strings.Contains(op, "80.000,00") || !strings.Contains(op, "Honorarios") {
		t.Errorf("unexpected operational fallback: %q", op)
	}

	st := narrative.Strategic.BuildFallback(narrative.Input{Bag: bag})
	if !strings.Contains(st, "sin período de comparación") || !strings.Contains(st, "Salto") {
		t.Errorf("unexpected strategic fallback: %q", st)
	}
}

func TestVariantFor(t *testing.T) {
	if v, ok := narrative.VariantFor("estratégico"); !ok || v.Name != "strategic" {
		t.Errorf("expected strategic, got %q %v", v.Name, ok)
	}
	if _, ok := narrative.VariantFor("poetic"); ok {
		t.Error("expected unknown kind to be rejected")
	}
}
