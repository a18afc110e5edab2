// Package textsql turns a free-text question into SQL through an LLM.
// The returned text is the raw model output; extraction and validation
// happen in the query package.
package textsql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/port"
)

var tracer = otel.Tracer("textsql")

// MaxHistoryTurns bounds how much conversation is replayed into the prompt.
const MaxHistoryTurns = 6

// Dialect names accepted by NewEngine.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectBigQuery = "bigquery"
)

// Config for the engine.
type Config struct {
	Dialect   string
	Table     string
	Timeout   time.Duration
	MaxTokens int
}

// Engine implements port.SQLGenerator. It makes exactly one LLM call per
// question; a failed call is reported, never retried.
type Engine struct {
	llm port.LLMClient
	cfg Config
}

func NewEngine(llm port.LLMClient, cfg Config) *Engine {
	if cfg.Table == "" {
		cfg.Table = "transacciones"
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	return &Engine{llm: llm, cfg: cfg}
}

func (e *Engine) Generate(ctx context.Context, question string, history []domain.ConversationTurn) (string, error) {
	ctx, span := tracer.Start(ctx, "Engine.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("sql.dialect", e.cfg.Dialect))

	if strings.TrimSpace(question) == "" {
		return "", &domain.ErrValidation{Field: "question", Message: "question is required"}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	raw, err := e.llm.Complete(ctx, BuildPrompt(e.cfg, question, history), e.cfg.MaxTokens, 0)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &domain.ErrTimeout{Operation: "textsql.generate"}
		}
		return "", fmt.Errorf("generating sql: %w", err)
	}
	return raw, nil
}

// BuildPrompt renders the schema, the rules and the recent history.
func BuildPrompt(cfg Config, question string, history []domain.ConversationTurn) string {
	var b strings.Builder

	b.WriteString("Sos un analista financiero que escribe SQL para un estudio profesional.\n")
	fmt.Fprintf(&b, "Dialecto: %s.\n\n", cfg.Dialect)

	fmt.Fprintf(&b, "Tabla %s:\n", cfg.Table)
	for _, c := range schema {
		fmt.Fprintf(&b, "  - %s %s: %s\n", c.name, c.kind, c.desc)
	}

	b.WriteString("\nREGLAS:\n")
	b.WriteString("1. Devolvé UNA sola sentencia SELECT (o WITH ... SELECT) dentro de un bloque ```sql.\n")
	b.WriteString("2. Nunca modifiques datos: nada de INSERT, UPDATE, DELETE, DROP, ALTER, CREATE.\n")
	b.WriteString("3. Excluí siempre las filas con deleted_at no nulo.\n")
	b.WriteString("4. Usá monto_uyu salvo que la pregunta pida dólares.\n")
	b.WriteString("5. Para rangos de fechas usá fecha >= inicio AND fecha < fin.\n")
	b.WriteString("6. Usá alias legibles en español para las columnas calculadas.\n")
	if cfg.Dialect == DialectBigQuery {
		b.WriteString("7. Calificá la tabla con su dataset (finops.transacciones).\n")
	}

	if turns := recent(history); len(turns) > 0 {
		b.WriteString("\nConversación previa:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, strings.TrimSpace(t.Content))
		}
	}

	fmt.Fprintf(&b, "\nPregunta: %s\n", strings.TrimSpace(question))
	return b.String()
}

func recent(history []domain.ConversationTurn) []domain.ConversationTurn {
	if len(history) > MaxHistoryTurns {
		return history[len(history)-MaxHistoryTurns:]
	}
	return history
}

type column struct {
	name, kind, desc string
}

var schema = []column{
	{"id", "TEXT", "identificador"},
	{"tipo", "TEXT", "INGRESO, GASTO, RETIRO o DISTRIBUCION"},
	{"fecha", "TIMESTAMP", "fecha de la operación"},
	{"monto_original", "DECIMAL", "monto en la moneda original"},
	{"moneda_original", "TEXT", "UYU o USD"},
	{"tipo_cambio", "DECIMAL", "pesos por dólar al momento de la operación"},
	{"monto_uyu", "DECIMAL", "monto en pesos uruguayos"},
	{"monto_usd", "DECIMAL", "monto en dólares"},
	{"categoria", "TEXT", "categoría, puede ser nula"},
	{"localidad", "TEXT", "localidad de la operación"},
	{"nombre_contraparte", "TEXT", "cliente o proveedor, puede ser nulo"},
	{"descripcion", "TEXT", "descripción libre"},
	{"deleted_at", "TIMESTAMP", "no nulo si la fila fue eliminada"},
}
