// Package sqlguard extracts SQL from LLM output, rewrites it into an
// executable single statement, screens it against unsafe patterns, and
// validates its table and column references against a schema dump.
package sqlguard

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Extraction cascade, first successful stage wins:
//  1. JSON object carrying a "sql_query" key
//  2. fenced block labeled sql
//  3. <sql_generated>/<sql_query>/<sql_code> delimiters
//  4. reasoning blocks discarded wholesale, remainder used
//  5. the whole input
var (
	embeddedSQLKeyRe = regexp.MustCompile(`"sql_query"\s*:\s*("(?:[^"\\]|\\.)*")`)
	fencedSQLRe      = regexp.MustCompile("(?is)```sql\\s*(.*?)```")
	delimitedRes     = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<sql_generated>(.*?)</sql_generated>`),
		regexp.MustCompile(`(?is)<sql_query>(.*?)</sql_query>`),
		regexp.MustCompile(`(?is)<sql_code>(.*?)</sql_code>`),
	}
	reasoningRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)###ponder###.*?###/ponder###`),
		regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
	}
)

// Extract pulls a bare SQL statement out of possibly-verbose LLM text.
// Returns the empty string when nothing remains after trimming.
func Extract(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if sql, ok := tryExtractJSON(raw); ok {
		return finishExtract(sql)
	}
	if m := fencedSQLRe.FindStringSubmatch(raw); m != nil {
		return finishExtract(m[1])
	}
	for _, re := range delimitedRes {
		if m := re.FindStringSubmatch(raw); m != nil {
			return finishExtract(m[1])
		}
	}

	// Reasoning markers wrap text that must never be mistaken for SQL.
	stripped := raw
	for _, re := range reasoningRes {
		stripped = re.ReplaceAllString(stripped, "")
	}
	return finishExtract(stripped)
}

// tryExtractJSON looks for a sql_query key, first in the input parsed as a
// whole JSON object, then embedded anywhere in the text.
func tryExtractJSON(raw string) (string, bool) {
	if strings.HasPrefix(raw, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			if sql, ok := obj["sql_query"].(string); ok {
				return sql, true
			}
		}
	}
	if m := embeddedSQLKeyRe.FindStringSubmatch(raw); m != nil {
		var sql string
		if err := json.Unmarshal([]byte(m[1]), &sql); err == nil {
			return sql, true
		}
	}
	return "", false
}

// finishExtract trims the candidate and keeps nothing past the first
// statement terminator.
func finishExtract(sql string) string {
	sql = strings.TrimSpace(sql)
	if idx := strings.Index(sql, ";"); idx >= 0 {
		sql = strings.TrimSpace(sql[:idx+1])
	}
	return sql
}
