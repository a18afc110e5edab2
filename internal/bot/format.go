package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/finops-assistant-go/internal/metrics"
	"github.com/boddenberg/finops-assistant-go/internal/narrative"
)

const commandPrefix = "!"

// Command is a parsed "!name args" message.
type Command struct {
	Name string
	Args string
}

// ParseCommand splits a prefixed message. Names are case-insensitive.
func ParseCommand(content string) (Command, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, commandPrefix) {
		return Command{}, false
	}
	name, args, _ := strings.Cut(strings.TrimPrefix(content, commandPrefix), " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Command{}, false
	}
	return Command{Name: name, Args: strings.TrimSpace(args)}, true
}

// MonthPeriod resolves "YYYY-MM" to the first and last day of that month.
// An empty argument selects the month containing now.
func MonthPeriod(arg string, now time.Time) (time.Time, time.Time, error) {
	var month time.Time
	if arg == "" {
		y, m, _ := now.Date()
		month = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	} else {
		var err error
		month, err = time.Parse("2006-01", arg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing month %q: %w", arg, err)
		}
	}
	return month, month.AddDate(0, 1, -1), nil
}

// FormatSummary renders the headline metrics of a bag as a Discord message.
func FormatSummary(bag metrics.Bag) string {
	var b strings.Builder

	label, _ := bag.String("period_label")
	fmt.Fprintf(&b, "📊 **Resumen %s**\n", label)

	for _, line := range []struct{ title, key string }{
		{"Ingresos", "income_uyu"},
		{"Gastos", "expense_uyu"},
		{"Resultado neto", "net_result_uyu"},
	} {
		if v, ok := bag.Decimal(line.key); ok {
			fmt.Fprintf(&b, "%s: $ %s\n", line.title, narrative.FormatMoney(v))
		}
	}
	if v, ok := bag.Decimal("profitability_uyu"); ok {
		fmt.Fprintf(&b, "Rentabilidad: %s%%\n", narrative.FormatMoney(v))
	}
	if v, ok := bag.Decimal("income_variation_uyu"); ok {
		fmt.Fprintf(&b, "Variación de ingresos: %s%%\n", narrative.FormatMoney(v))
	}
	if n, ok := bag.Int("total_transactions"); ok {
		fmt.Fprintf(&b, "Transacciones: %s", narrative.FormatInt(int64(n)))
	}
	return strings.TrimRight(b.String(), "\n")
}
