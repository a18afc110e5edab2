// Package query holds the pure stages of the question pipeline: pulling a
// statement out of model output, checking it is a safe read, and adjusting the
// currency column to the one the question asked for.
package query

import (
	"regexp"
	"strings"
)

var (
	sqlFence     = regexp.MustCompile("(?is)```sql[ \\t]*\\r?\\n(.*?)```")
	genericFence = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \\t]*\\r?\\n?(.*?)```")
	hasQueryWord = regexp.MustCompile(`(?i)\b(SELECT|WITH)\b`)
	// WITH only counts as a statement start when it opens a CTE, so prose like
	// "with this query" is not taken for SQL.
	statementStart = regexp.MustCompile(`(?i)\bSELECT\b|\bWITH\s+(?:RECURSIVE\s+)?\w+(?:\s*\([^)]*\))?\s+AS\s*\(`)
	blankLine      = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)
)

// ExtractSQL finds a single candidate statement in raw model output.
// It tries, in order: a fence tagged sql, any fence whose body mentions
// SELECT or WITH, then the first SELECT/WITH in plain text up to the first
// semicolon or blank line. ok is false when nothing matches.
func ExtractSQL(raw string) (sql string, ok bool) {
	if m := sqlFence.FindStringSubmatch(raw); m != nil {
		if s := clean(m[1]); s != "" {
			return s, true
		}
	}

	for _, m := range genericFence.FindAllStringSubmatch(raw, -1) {
		if hasQueryWord.MatchString(m[1]) {
			if s := clean(m[1]); s != "" {
				return s, true
			}
		}
	}

	loc := statementStart.FindStringIndex(raw)
	if loc == nil {
		return "", false
	}
	rest := raw[loc[0]:]
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		rest = rest[:i]
	}
	if loc := blankLine.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	if s := clean(rest); s != "" {
		return s, true
	}
	return "", false
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	return s
}
