package sqlguard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/datanaut-ai/datanaut/pkg/state"
)

var (
	// Table reference with optional alias, directly after FROM or any JOIN.
	tableWithAliasRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+("[^"]+"|[A-Za-z_][A-Za-z0-9_$]*(?:\.[A-Za-z_][A-Za-z0-9_$]*)*)(?:\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_]*))?`)
	// Qualified column reference qualifier.column.
	qualifiedColumnRe = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\b`)
	// String literals are blanked before parsing so their contents cannot
	// look like references.
	stringLiteralRe = regexp.MustCompile(`'(?:[^']|'')*'`)

	// Keywords that the alias position can be confused with.
	aliasStopWords = map[string]struct{}{
		"where": {}, "on": {}, "join": {}, "inner": {}, "outer": {}, "left": {},
		"right": {}, "full": {}, "cross": {}, "group": {}, "order": {}, "having": {},
		"limit": {}, "offset": {}, "union": {}, "as": {}, "using": {}, "natural": {},
		"and": {}, "or": {}, "set": {}, "when": {}, "then": {}, "else": {}, "end": {},
	}
)

// TableRef is one resolved table reference with its binding name.
type TableRef struct {
	Table string // schema-dump table name as written in the query
	Alias string // binding used in column qualifiers; Table when no alias
}

// ParseTableRefs extracts FROM/JOIN table references and alias bindings
// from a sanitized statement. Subqueries in the FROM position contribute
// nothing; their inner references are found by the same scan.
func ParseTableRefs(query string) []TableRef {
	blanked := stringLiteralRe.ReplaceAllString(query, "''")
	matches := tableWithAliasRe.FindAllStringSubmatch(blanked, -1)
	refs := make([]TableRef, 0, len(matches))
	for _, m := range matches {
		table := strings.Trim(m[1], `"`)
		alias := m[2]
		if _, stop := aliasStopWords[strings.ToLower(alias)]; stop || alias == "" {
			alias = table
		}
		refs = append(refs, TableRef{Table: table, Alias: alias})
	}
	return refs
}

// ValidateReferences checks every FROM/JOIN table and every qualified
// column reference against the schema dump. Matching is case-insensitive;
// the dump spans all configured databases, so references into any of them
// resolve. The returned error names the first unresolved reference.
func ValidateReferences(query string, schema map[string]state.TableSchema) error {
	if len(schema) == 0 {
		return fmt.Errorf("schema dump is empty, cannot validate references")
	}

	// Index tables and columns case-insensitively.
	tables := make(map[string]state.TableSchema, len(schema))
	for name, tbl := range schema {
		tables[strings.ToLower(name)] = tbl
	}

	refs := ParseTableRefs(query)
	if len(refs) == 0 {
		return fmt.Errorf("no table references found")
	}

	binding := make(map[string]string, len(refs)) // alias (lower) → table (lower)
	for _, ref := range refs {
		tableKey := strings.ToLower(stripSchemaPrefix(ref.Table))
		if _, ok := tables[tableKey]; !ok {
			return fmt.Errorf("table %q not found in schema", ref.Table)
		}
		binding[strings.ToLower(ref.Alias)] = tableKey
		binding[tableKey] = tableKey
	}

	// Bare select-list columns are checkable only when the query reads a
	// single table; with joins they stay the database's problem.
	if len(refs) == 1 {
		tableKey := strings.ToLower(stripSchemaPrefix(refs[0].Table))
		for _, column := range parseBareSelectColumns(query) {
			if !tableHasColumn(tables[tableKey], column) {
				return fmt.Errorf("column %q not found in table %q", column, tableKey)
			}
		}
	}

	blanked := stringLiteralRe.ReplaceAllString(query, "''")
	for _, m := range qualifiedColumnRe.FindAllStringSubmatch(blanked, -1) {
		qualifier, column := strings.ToLower(m[1]), strings.ToLower(m[2])
		tableKey, bound := binding[qualifier]
		if !bound {
			// Schema-qualified table names scan as pairs too
			// (public.contacts); both sides were validated above.
			if isSchemaName(qualifier) {
				continue
			}
			if _, isTable := binding[column]; isTable {
				continue
			}
			return fmt.Errorf("column qualifier %q is not a table or alias in this query", m[1])
		}
		if !tableHasColumn(tables[tableKey], column) {
			return fmt.Errorf("column %q not found in table %q", m[2], tableKey)
		}
	}
	return nil
}

func stripSchemaPrefix(table string) string {
	if idx := strings.LastIndex(table, "."); idx >= 0 {
		return table[idx+1:]
	}
	return table
}

var (
	selectListRe   = regexp.MustCompile(`(?is)^\s*SELECT\s+(?:DISTINCT\s+)?(.*?)\s+FROM\b`)
	bareIdentRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	selectListSkip = map[string]struct{}{"null": {}, "true": {}, "false": {}, "case": {}}
)

// parseBareSelectColumns returns unqualified column identifiers from the
// select list. Expressions, literals, stars and qualified names are skipped;
// only items that must be plain columns of the queried table come back.
func parseBareSelectColumns(query string) []string {
	m := selectListRe.FindStringSubmatch(stringLiteralRe.ReplaceAllString(query, "''"))
	if m == nil {
		return nil
	}
	var columns []string
	for _, item := range strings.Split(m[1], ",") {
		item = strings.TrimSpace(item)
		// Strip a trailing alias; the leading token is the candidate.
		if fields := strings.Fields(item); len(fields) > 0 {
			item = fields[0]
		}
		lower := strings.ToLower(item)
		if _, skip := selectListSkip[lower]; skip {
			continue
		}
		if bareIdentRe.MatchString(item) {
			columns = append(columns, lower)
		}
	}
	return columns
}

func isSchemaName(name string) bool {
	_, ok := schemaAllowList[name]
	return ok
}

func tableHasColumn(tbl state.TableSchema, column string) bool {
	for _, col := range tbl.Columns {
		if strings.EqualFold(col.Name, column) {
			return true
		}
	}
	return false
}
