package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Violation is the screen's rejection, carrying the rule that fired.
type Violation struct {
	Kind   string // structure, verb, injection, function
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("unsafe sql (%s): %s", v.Kind, v.Reason)
}

// screenRule is one entry of the data-driven screen table.
type screenRule struct {
	kind    string
	reason  string
	pattern *regexp.Regexp
}

var selectOrWithRe = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)

// screenRules are evaluated in order; the first match rejects. The verb
// list is the fixed harmful set; CREATE is special-cased below so column
// names like created_at or create_at never trigger it. The function family
// set is deduplicated across dialects.
var screenRules = []screenRule{
	{"verb", "data or schema mutation verb", regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|TRUNCATE|ALTER|EXEC(UTE)?|GRANT|REVOKE|MERGE|REPLACE)\b`)},
	{"verb", "DDL CREATE statement", regexp.MustCompile(`(?i)\bCREATE\s+(TABLE|INDEX|VIEW|DATABASE|SCHEMA|SEQUENCE|TRIGGER|PROCEDURE|FUNCTION|USER|ROLE|EXTENSION)\b`)},
	{"injection", "UNION-based probe", regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`)},
	{"injection", "catalog introspection", regexp.MustCompile(`(?i)\binformation_schema\b`)},
	{"injection", "system object prefix", regexp.MustCompile(`(?i)\b(pg_|sqlite_|xp_|sp_)[a-z0-9_]+`)},
	{"injection", "time-based probe", regexp.MustCompile(`(?i)\b(SLEEP|BENCHMARK)\s*\(`)},
	{"injection", "time-based probe", regexp.MustCompile(`(?i)\bWAITFOR\s+DELAY\b`)},
	{"injection", "file read function", regexp.MustCompile(`(?i)\bLOAD_FILE\s*\(`)},
	{"injection", "file write clause", regexp.MustCompile(`(?i)\bINTO\s+(OUTFILE|DUMPFILE)\b`)},
	{"injection", "comment token", regexp.MustCompile(`/\*|--|#`)},
	{"injection", "hex literal", regexp.MustCompile(`(?i)\b0x[0-9a-f]+\b`)},
	{"injection", "binary literal", regexp.MustCompile(`(?i)\bb'[01]+'`)},
	{"injection", "stacked statements", regexp.MustCompile(`;\s*\S`)},
	{"function", "process or shell access", regexp.MustCompile(`(?i)\bSYS_(EXEC|EVAL)\b`)},
	{"function", "remote data access", regexp.MustCompile(`(?i)\b(DBLINK|OPENROWSET|OPENDATASOURCE|OPENQUERY)\b`)},
	{"function", "oracle system package", regexp.MustCompile(`(?i)\b(UTL_|DBMS_|CTXSYS\.)[a-z0-9_]+`)},
}

// Screen applies the keyword and pattern rules to an extracted candidate.
// It returns nil for an acceptable read-only statement and a *Violation
// describing the first rule that fired otherwise. The screen judges the
// raw candidate; sanitization is the executor's concern.
func Screen(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return &Violation{Kind: "structure", Reason: "empty statement"}
	}
	if !selectOrWithRe.MatchString(trimmed) {
		return &Violation{Kind: "structure", Reason: "statement must begin with SELECT or WITH"}
	}
	for _, rule := range screenRules {
		if rule.pattern.MatchString(trimmed) {
			return &Violation{Kind: rule.kind, Reason: rule.reason}
		}
	}
	return nil
}
