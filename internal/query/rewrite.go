package query

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

var usdWords = regexp.MustCompile(`\b(usd|dolar|dolares|dollar|dollars)\b|u\$s|us\$`)

// columnSwaps are applied when the question asks for USD.
var columnSwaps = [][2]string{
	{"monto_uyu", "monto_usd"},
	{"MONTO_UYU", "MONTO_USD"},
}

// Rewrite is the result of the currency post-processor.
type Rewrite struct {
	SQL      string          `json:"sql"`
	Currency domain.Currency `json:"currency"`
	Changes  []string        `json:"changes,omitempty"`
}

// Fold lowercases s and strips diacritics ("Dólares" → "dolares").
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// DetectCurrency picks the currency a question asks for. USD keywords are
// checked first, so "pesos o dólares" resolves to USD; anything else,
// including explicit peso mentions, is the local currency.
func DetectCurrency(question string) domain.Currency {
	if usdWords.MatchString(Fold(question)) {
		return domain.CurrencyUSD
	}
	return domain.CurrencyUYU
}

// RewriteCurrency swaps the local-currency amount column for the USD one when
// the question asks for dollars. It is a textual substitution, not a parse.
func RewriteCurrency(question, sql string) Rewrite {
	r := Rewrite{SQL: sql, Currency: DetectCurrency(question)}
	if r.Currency != domain.CurrencyUSD {
		return r
	}
	for _, swap := range columnSwaps {
		if strings.Contains(r.SQL, swap[0]) {
			r.SQL = strings.ReplaceAll(r.SQL, swap[0], swap[1])
			r.Changes = append(r.Changes, swap[0]+" -> "+swap[1])
		}
	}
	return r
}
