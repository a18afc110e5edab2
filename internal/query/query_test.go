package query_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
	"github.com/boddenberg/finops-assistant-go/internal/query"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{
			name:   "sql fence",
			raw:    "```sql\nSELECT 1\n```",
			want:   "SELECT 1",
			wantOK: true,
		},
		{
			name:   "sql fence wins over earlier generic fence",
			raw:    "```\nSELECT 2\n```\nmejor:\n```SQL\nSELECT 3;\n```",
			want:   "SELECT 3",
			wantOK: true,
		},
		{
			name:   "sqlite tag is not a sql fence",
			raw:    "```sqlite\nSELECT 2\n```",
			want:   "SELECT 2",
			wantOK: true,
		},
		{
			name:   "sql-server tag keeps the body intact",
			raw:    "```sql-server\nSELECT TOP 1 categoria FROM transacciones\n```",
			want:   "SELECT TOP 1 categoria FROM transacciones",
			wantOK: true,
		},
		{
			name:   "generic fence with select",
			raw:    "Aquí está:\n```\nSELECT monto_uyu FROM transacciones\n```",
			want:   "SELECT monto_uyu FROM transacciones",
			wantOK: true,
		},
		{
			name:   "generic fence without query is skipped",
			raw:    "```\nno hay nada\n```\nSELECT 4;",
			want:   "SELECT 4",
			wantOK: true,
		},
		{
			name:   "plain text stops at semicolon",
			raw:    "La consulta es SELECT SUM(monto_uyu) FROM transacciones; esto suma todo.",
			want:   "SELECT SUM(monto_uyu) FROM transacciones",
			wantOK: true,
		},
		{
			name:   "plain text stops at blank line",
			raw:    "SELECT categoria FROM transacciones\n\nEsta consulta lista categorías.",
			want:   "SELECT categoria FROM transacciones",
			wantOK: true,
		},
		{
			name:   "with preferred when earlier",
			raw:    "WITH t AS (SELECT 1 AS x) SELECT x FROM t;",
			want:   "WITH t AS (SELECT 1 AS x) SELECT x FROM t",
			wantOK: true,
		},
		{
			name:   "prose with is not a cte",
			raw:    "I can help with that. SELECT 5",
			want:   "SELECT 5",
			wantOK: true,
		},
		{
			name:   "no sql",
			raw:    "Lo siento, no puedo responder eso.",
			wantOK: false,
		},
		{
			name:   "empty",
			raw:    "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := query.ExtractSQL(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v (sql=%q)", tt.wantOK, ok, got)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		valid   bool
		rule    string
		keyword string
	}{
		{"clean select", "SELECT * FROM transacciones", true, "", ""},
		{"trailing semicolon", "SELECT 1;", true, "", ""},
		{"cte", "WITH x AS (SELECT 1) SELECT * FROM x", true, "", ""},
		{"select mentioning update column", "SELECT updated_at FROM t", true, "", ""},
		{"empty", "   ", false, query.RuleEmpty, ""},
		{"only comment", "-- nada", false, query.RuleEmpty, ""},
		{"drop at start", "DROP TABLE transacciones", false, query.RuleForbiddenKeyword, "DROP"},
		{"drop lowercase", "  drop table t", false, query.RuleForbiddenKeyword, "DROP"},
		{"drop after comment", "/* hola */ DrOp TABLE t", false, query.RuleForbiddenKeyword, "DROP"},
		{"line comment marker inside literal", "SELECT '--'; DROP TABLE movimientos", false, query.RuleMultipleStatements, ""},
		{"block comment markers inside literals", "SELECT '/*' AS a; DELETE FROM movimientos; SELECT '*/'", false, query.RuleMultipleStatements, ""},
		{"double quoted comment marker", `SELECT "--" FROM t; DROP TABLE t`, false, query.RuleMultipleStatements, ""},
		{"backtick comment marker", "SELECT `a--b` FROM t; DROP TABLE t", false, query.RuleMultipleStatements, ""},
		{"doubled quote escape", "SELECT 'it''s --'; DROP TABLE t", false, query.RuleMultipleStatements, ""},
		{"backslash escape hides nothing", `SELECT 'it\'s -- '; DROP TABLE t`, false, query.RuleMultipleStatements, ""},
		{"comment marker in literal is kept", "SELECT * FROM t WHERE descripcion = 'a--b'", true, "", ""},
		{"trailing line comment", "SELECT 1 -- total\n", true, "", ""},
		{"semicolon inside literal", "SELECT * FROM t WHERE descripcion = 'x;y'", false, query.RuleMultipleStatements, ""},
		{"stacked delete", "SELECT 1; DELETE FROM x", false, query.RuleMultipleStatements, ""},
		{"stacked drop", "select 1;drop table t", false, query.RuleMultipleStatements, ""},
		{"forbidden after trailing semicolon", "; INSERT INTO t VALUES (1)", false, query.RuleForbiddenKeyword, "INSERT"},
		{"pragma", "PRAGMA table_info(t)", false, query.RuleNotAQuery, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := query.Validate(tt.sql)
			if v.Valid != tt.valid {
				t.Fatalf("expected valid=%v, got %+v", tt.valid, v)
			}
			if v.Rule != tt.rule {
				t.Errorf("expected rule %q, got %q", tt.rule, v.Rule)
			}
			if v.Keyword != tt.keyword {
				t.Errorf("expected keyword %q, got %q", tt.keyword, v.Keyword)
			}
		})
	}
}

func TestValidate_DropAnyCase(t *testing.T) {
	for _, kw := range []string{"DROP", "drop", "Drop", "dRoP"} {
		for _, sql := range []string{kw + " TABLE x", "SELECT 1;" + kw + " TABLE x", "  " + kw + " TABLE x"} {
			if query.Validate(sql).Valid {
				t.Errorf("expected %q to be rejected", sql)
			}
		}
	}
}

func TestValidation_Err(t *testing.T) {
	if err := query.Validate("SELECT 1").Err(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	err := query.Validate("TRUNCATE t").Err()
	var unsafe *domain.ErrUnsafeSQL
	if !errors.As(err, &unsafe) {
		t.Fatalf("expected ErrUnsafeSQL, got %v", err)
	}
	if unsafe.Keyword != "TRUNCATE" {
		t.Errorf("expected TRUNCATE, got %s", unsafe.Keyword)
	}
}

func TestRewriteCurrency_Dollars(t *testing.T) {
	r := query.RewriteCurrency("¿cuánto en dólares?", "SELECT monto_uyu FROM t")

	if r.Currency != domain.CurrencyUSD {
		t.Errorf("expected USD, got %s", r.Currency)
	}
	if !strings.Contains(r.SQL, "monto_usd") || strings.Contains(r.SQL, "monto_uyu") {
		t.Errorf("unexpected sql: %s", r.SQL)
	}
	if len(r.Changes) != 1 {
		t.Errorf("expected 1 change, got %v", r.Changes)
	}
}

func TestRewriteCurrency_UpperCase(t *testing.T) {
	r := query.RewriteCurrency("total en USD", "SELECT SUM(MONTO_UYU), monto_uyu FROM t")
	if r.SQL != "SELECT SUM(MONTO_USD), monto_usd FROM t" {
		t.Errorf("unexpected sql: %s", r.SQL)
	}
	if len(r.Changes) != 2 {
		t.Errorf("expected 2 changes, got %v", r.Changes)
	}
}

func TestRewriteCurrency_DefaultsToPesos(t *testing.T) {
	for _, q := range []string{"¿cuánto facturamos?", "total en pesos", "gastos en moneda nacional"} {
		r := query.RewriteCurrency(q, "SELECT monto_uyu FROM t")
		if r.Currency != domain.CurrencyUYU {
			t.Errorf("%q: expected UYU, got %s", q, r.Currency)
		}
		if r.SQL != "SELECT monto_uyu FROM t" || len(r.Changes) != 0 {
			t.Errorf("%q: expected untouched sql, got %s %v", q, r.SQL, r.Changes)
		}
	}
}

func TestRewriteCurrency_DollarsWinOverPesos(t *testing.T) {
	if got := query.DetectCurrency("pasá los pesos a DÓLARES"); got != domain.CurrencyUSD {
		t.Errorf("expected USD, got %s", got)
	}
}

func TestFold(t *testing.T) {
	if got := query.Fold("Dólares Ñandú"); got != "dolares nandu" {
		t.Errorf("unexpected fold: %q", got)
	}
}
