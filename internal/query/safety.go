package query

import (
	"regexp"
	"strings"

	"github.com/boddenberg/finops-assistant-go/internal/domain"
)

// Validation rules, in the order they are checked.
const (
	RuleEmpty              = "empty"
	RuleMultipleStatements = "multiple_statements"
	RuleForbiddenKeyword   = "forbidden_keyword"
	RuleNotAQuery          = "not_a_query"
)

// ForbiddenKeywords may never start a statement.
var ForbiddenKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "TRUNCATE",
	"ALTER", "GRANT", "REVOKE", "CREATE", "COPY",
}

var (
	forbidden  = regexp.MustCompile(`(?i)(?:^|;)\s*(` + strings.Join(ForbiddenKeywords, "|") + `)\b`)
	queryStart = regexp.MustCompile(`(?i)^\(*\s*(SELECT|WITH)\b`)
)

// Validation is the verdict of the safety gate.
type Validation struct {
	Valid   bool   `json:"valid"`
	Rule    string `json:"rule,omitempty"`
	Keyword string `json:"keyword,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Err returns nil for a valid statement, otherwise a *domain.ErrUnsafeSQL.
func (v Validation) Err() error {
	if v.Valid {
		return nil
	}
	return &domain.ErrUnsafeSQL{Rule: v.Rule, Keyword: v.Keyword}
}

// Validate decides whether sql is a single read-only query. It never executes
// anything and has no bypass.
//
// The statement and keyword rules run on both the comment-stripped and the raw
// text; either one failing rejects. Dialects disagree on string escapes, so a
// comment marker the stripper saw outside a literal may sit inside one for the
// database, and the raw pass keeps that from hiding a second statement.
func Validate(sql string) Validation {
	s := strings.TrimSpace(stripComments(sql))
	if s == "" {
		return Validation{Rule: RuleEmpty, Reason: "statement is empty"}
	}

	if countStatements(s) > 1 || countStatements(sql) > 1 {
		return Validation{Rule: RuleMultipleStatements, Reason: "more than one statement"}
	}

	for _, text := range []string{s, sql} {
		if m := forbidden.FindStringSubmatch(text); m != nil {
			kw := strings.ToUpper(m[1])
			return Validation{Rule: RuleForbiddenKeyword, Keyword: kw, Reason: kw + " is not allowed"}
		}
	}

	if !queryStart.MatchString(s) {
		return Validation{Rule: RuleNotAQuery, Reason: "statement must start with SELECT or WITH"}
	}

	return Validation{Valid: true}
}

// stripComments replaces -- and /* */ comments with a space, leaving quoted
// text ('...', "...", `...`) untouched. A doubled quote inside a literal closes
// and reopens it, which keeps the scan in step.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += 2 + end + 1
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func countStatements(s string) int {
	n := 0
	for _, seg := range strings.Split(s, ";") {
		if strings.TrimSpace(seg) != "" {
			n++
		}
	}
	return n
}
