package narrative

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boddenberg/finops-assistant-go/internal/metrics"
)

const (
	promptRowLimit   = 50
	fallbackRowLimit = 5
)

const contentRules = `Reglas:
- Usá únicamente los valores presentes en los datos. No inventes cifras, nombres ni fechas.
- Si un campo está vacío o es nulo, escribí "no especificado".
- No afirmes que algo es "el único" o "la única" salvo que el conteo sea exactamente 1.
- Formateá los montos con separador de miles (150.000,00).
- Respondé en español, en un tono profesional, en no más de 6 líneas.`

// Answer narrates the rows returned for a question.
var Answer = Variant{
	Name:          "answer",
	BuildPrompt:   answerPrompt,
	ParseResponse: func(raw string, in Input) (string, error) { return CleanResponse(raw, ResultCount(in.Rows)) },
	BuildFallback: answerFallback,
}

// Operational summarises the month-to-month health of the firm from a bag.
var Operational = Variant{
	Name:          "operational",
	BuildPrompt:   func(in Input) string { return insightPrompt(in, operationalFocus) },
	ParseResponse: insightParse,
	BuildFallback: operationalFallback,
}

// Strategic highlights trends and concentration from a bag.
var Strategic = Variant{
	Name:          "strategic",
	BuildPrompt:   func(in Input) string { return insightPrompt(in, strategicFocus) },
	ParseResponse: insightParse,
	BuildFallback: strategicFallback,
}

// VariantFor maps an insight kind to its variant.
func VariantFor(kind string) (Variant, bool) {
	switch strings.ToLower(kind) {
	case "operational", "operativo":
		return Operational, true
	case "strategic", "estrategico", "estratégico":
		return Strategic, true
	}
	return Variant{}, false
}

// ============================================================
// Answer
// ============================================================

func answerPrompt(in Input) string {
	rows := in.Rows
	truncated := false
	if len(rows) > promptRowLimit {
		rows = rows[:promptRowLimit]
		truncated = true
	}
	data, err := json.Marshal(rows)
	if err != nil {
		data = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("Sos un analista financiero de un estudio profesional en Uruguay.\n")
	b.WriteString("Resumí el resultado de la consulta para responder la pregunta del usuario.\n\n")
	b.WriteString(contentRules)
	fmt.Fprintf(&b, "\n- El conteo de resultados es %d.\n", ResultCount(in.Rows))
	if in.Currency != "" {
		fmt.Fprintf(&b, "- Los montos están expresados en %s.\n", in.Currency)
	}
	fmt.Fprintf(&b, "\nPregunta: %s\n", in.Question)
	fmt.Fprintf(&b, "SQL ejecutado: %s\n", in.SQL)
	fmt.Fprintf(&b, "Datos (%d filas", len(in.Rows))
	if truncated {
		fmt.Fprintf(&b, ", se muestran %d", promptRowLimit)
	}
	fmt.Fprintf(&b, "): %s\n", data)
	return b.String()
}

func answerFallback(in Input) string {
	if len(in.Rows) == 0 {
		return "No se encontraron resultados para la consulta."
	}

	if len(in.Rows) == 1 && len(in.Rows[0]) == 1 {
		for k, v := range in.Rows[0] {
			return fmt.Sprintf("Resultado (%s): %s.", k, FormatValue(v))
		}
	}

	lines := []string{fmt.Sprintf("Resultados (%s filas):", FormatInt(int64(len(in.Rows))))}
	for i, row := range in.Rows {
		if i == fallbackRowLimit {
			lines = append(lines, fmt.Sprintf("... y %s más.", FormatInt(int64(len(in.Rows)-fallbackRowLimit))))
			break
		}
		parts := make([]string, 0, len(row))
		for _, col := range columns(row) {
			parts = append(parts, col+": "+FormatValue(row[col]))
		}
		lines = append(lines, "- "+strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}

// ============================================================
// Insights
// ============================================================

const (
	operationalFocus = "Enfocate en ingresos, gastos, resultado neto y rentabilidad del período, y en la categoría que más pesa."
	strategicFocus   = "Enfocate en la variación respecto al período anterior, la concentración de ingresos por categoría y localidad, y los retiros y distribuciones."
)

// insightKeys are the bag entries sent to the model, in prompt order.
var insightKeys = []string{
	"period_label",
	"income_uyu", "income_usd", "expense_uyu", "expense_usd",
	"net_result_uyu", "net_result_usd",
	"profitability_uyu", "expense_ratio_uyu",
	"withdrawal_uyu", "distribution_uyu",
	"leading_income_category", "leading_income_category_share",
	"leading_expense_category", "leading_expense_category_share",
	"income_variation_uyu", "expense_variation_uyu", "net_result_variation_uyu",
	"transaction_count", "income_count", "expense_count",
	"exchange_rate_usd_uyu",
}

func insightPrompt(in Input, focus string) string {
	var b strings.Builder
	b.WriteString("Sos un asesor financiero de un estudio profesional en Uruguay.\n")
	b.WriteString("Redactá observaciones breves a partir de estas métricas.\n")
	b.WriteString(focus + "\n\n")
	b.WriteString(contentRules)
	b.WriteString("\n\nMétricas:\n")
	for _, k := range insightKeys {
		if !in.Bag.Has(k) {
			continue
		}
		v, _ := in.Bag.Get(k)
		fmt.Fprintf(&b, "- %s: %s\n", k, FormatValue(v))
	}
	return b.String()
}

func insightParse(raw string, in Input) (string, error) {
	n, _ := in.Bag.Int("transaction_count")
	return CleanResponse(raw, n)
}

func operationalFallback(in Input) string {
	bag := in.Bag
	lines := []string{
		"Resumen de " + bagValue(bag, "period_label") + ":",
		fmt.Sprintf("Ingresos: $ %s (US$ %s).", bagValue(bag, "income_uyu"), bagValue(bag, "income_usd")),
		fmt.Sprintf("Gastos: $ %s (US$ %s).", bagValue(bag, "expense_uyu"), bagValue(bag, "expense_usd")),
		fmt.Sprintf("Resultado neto: $ %s; rentabilidad %s%%.", bagValue(bag, "net_result_uyu"), bagValue(bag, "profitability_uyu")),
	}
	if name, ok := bag.String("leading_income_category"); ok {
		lines = append(lines, fmt.Sprintf("Principal fuente de ingresos: %s (%s%%).", name, bagValue(bag, "leading_income_category_share")))
	}
	return strings.Join(lines, "\n")
}

func strategicFallback(in Input) string {
	bag := in.Bag
	lines := []string{
		"Tendencias de " + bagValue(bag, "period_label") + ":",
		"Variación de ingresos: " + variationText(bag, "income_variation_uyu") + ".",
		"Variación de gastos: " + variationText(bag, "expense_variation_uyu") + ".",
		"Variación del resultado neto: " + variationText(bag, "net_result_variation_uyu") + ".",
		fmt.Sprintf("Retiros: $ %s; distribuciones: $ %s.", bagValue(bag, "withdrawal_uyu"), bagValue(bag, "distribution_uyu")),
	}
	if loc, ok := bag.Breakdown("income_by_locality"); ok {
		if name, s, ok := loc.Leading(); ok {
			lines = append(lines, fmt.Sprintf("Localidad con más ingresos: %s (%s%%).", name, FormatMoney(s.Share)))
		}
	}
	return strings.Join(lines, "\n")
}

func bagValue(bag metrics.Bag, key string) string {
	v, _ := bag.Get(key)
	return FormatValue(v)
}

func variationText(bag metrics.Bag, key string) string {
	d, ok := bag.Decimal(key)
	if !ok {
		return "sin período de comparación"
	}
	return FormatMoney(d) + "%"
}
