package narrative

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// NotSpecified replaces empty or null fields in answers.
const NotSpecified = "no especificado"

// FormatMoney renders d with two decimals, "." as thousands separator and
// "," as decimal mark: 150000 → "150.000,00".
func FormatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	out := group(intPart) + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// FormatInt renders n with "." thousands separators.
func FormatInt(n int64) string {
	if n < 0 {
		return "-" + group(strconv.FormatInt(-n, 10))
	}
	return group(strconv.FormatInt(n, 10))
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	pre := len(digits) % 3
	if pre > 0 {
		b.WriteString(digits[:pre])
	}
	for i := pre; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatValue renders a single result cell for humans.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return NotSpecified
	case string:
		if strings.TrimSpace(x) == "" {
			return NotSpecified
		}
		if d, err := decimal.NewFromString(x); err == nil && strings.Contains(x, ".") {
			return FormatMoney(d)
		}
		return x
	case []byte:
		return FormatValue(string(x))
	case decimal.Decimal:
		return FormatMoney(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return FormatInt(int64(x))
		}
		return FormatMoney(decimal.NewFromFloat(x))
	case float32:
		return FormatValue(float64(x))
	case int:
		return FormatInt(int64(x))
	case int64:
		return FormatInt(x)
	case int32:
		return FormatInt(int64(x))
	case bool:
		if x {
			return "sí"
		}
		return "no"
	case time.Time:
		return x.Format("02/01/2006")
	default:
		return fmt.Sprint(x)
	}
}

// columns returns the sorted column names of row.
func columns(row domain.Row) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// countColumns are single-row aggregates whose value is the result count.
var countColumns = []string{"count", "cantidad", "total_count", "n", "num", "conteo"}

// ResultCount is the number of results a narrative may talk about: the value
// of a count column when rows is a single aggregate row, otherwise len(rows).
func ResultCount(rows []domain.Row) int {
	if len(rows) != 1 {
		return len(rows)
	}
	for k, v := range rows[0] {
		name := strings.ToLower(k)
		for _, c := range countColumns {
			if name == c || strings.HasPrefix(name, c+"_") || strings.HasSuffix(name, "_"+c) {
				if n, ok := asInt(v); ok {
					return n
				}
			}
		}
	}
	return 1
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case int32:
		return int(x), true
	case float64:
		return int(x), x == math.Trunc(x)
	case string:
		n, err := strconv.Atoi(x)
		return n, err == nil
	case []byte:
		n, err := strconv.Atoi(string(x))
		return n, err == nil
	}
	return 0, false
}
