package sqlguard

import (
	"regexp"
	"strings"
)

// schemaAllowList holds schema names a two-part identifier may keep. Any
// other two-part prefix is assumed to be a database name and dropped.
var schemaAllowList = map[string]struct{}{
	"public":             {},
	"analytics":          {},
	"information_schema": {},
	"pg_catalog":         {},
	"dbo":                {},
}

var (
	backslashRunRe  = regexp.MustCompile(`\\{2,}`)
	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRe   = regexp.MustCompile(`--[^\n]*`)
	hashCommentRe   = regexp.MustCompile(`#[^\n]*`)
	whitespaceRunRe = regexp.MustCompile(`[ \t\r\n]+`)

	// A table reference directly after FROM or JOIN: up to three dot-joined
	// parts, each either a bare identifier or a double-quoted one.
	identPart   = `(?:"[^"]+"|[A-Za-z_][A-Za-z0-9_$]*)`
	tableRefRe  = regexp.MustCompile(`(?i)\b(FROM|JOIN)(\s+)(` + identPart + `(?:\s*\.\s*` + identPart + `){1,2})`)
	identSplit  = regexp.MustCompile(`\s*\.\s*`)
	quotedIdent = regexp.MustCompile(`^"[^"]+"$`)
)

// Sanitize rewrites an extracted candidate into a single executable
// statement: undoes LLM escaping, strips comments, keeps only the first
// statement, and normalizes qualified table identifiers. Idempotent:
// Sanitize(Sanitize(q)) == Sanitize(q).
func Sanitize(query string) string {
	q := query

	// Escapes first. Backslash runs collapse before quote unescaping so
	// `\\'` resolves to a plain quote in one pass.
	q = backslashRunRe.ReplaceAllString(q, `\`)
	q = strings.ReplaceAll(q, `\'`, `'`)
	q = strings.ReplaceAll(q, `\n`, "\n")
	q = strings.ReplaceAll(q, `\t`, "\t")
	q = strings.ReplaceAll(q, `\r`, "\r")

	// Comments, then everything past the first terminator.
	q = blockCommentRe.ReplaceAllString(q, " ")
	q = lineCommentRe.ReplaceAllString(q, "")
	q = hashCommentRe.ReplaceAllString(q, "")
	if idx := strings.Index(q, ";"); idx >= 0 {
		q = q[:idx]
	}

	q = rewriteTableRefs(q)

	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(q, " "))
}

// rewriteTableRefs normalizes the qualified identifier directly following
// each FROM and JOIN. Column-qualifier dots elsewhere are untouched;
// aliases after the reference are untouched.
func rewriteTableRefs(q string) string {
	return tableRefRe.ReplaceAllStringFunc(q, func(ref string) string {
		m := tableRefRe.FindStringSubmatch(ref)
		return m[1] + m[2] + normalizeQualified(m[3])
	})
}

// normalizeQualified reduces a dotted table identifier to at most
// schema.table. A three-part name loses its leading database part; the
// remaining schema part survives only when it is on the allow-list.
func normalizeQualified(ident string) string {
	parts := identSplit.Split(ident, -1)
	if len(parts) == 3 {
		parts = parts[1:]
	}
	if len(parts) == 2 {
		if _, ok := schemaAllowList[strings.ToLower(unquoteIdent(parts[0]))]; !ok {
			parts = parts[1:]
		}
	}
	return strings.Join(parts, ".")
}

func unquoteIdent(part string) string {
	if quotedIdent.MatchString(part) {
		return part[1 : len(part)-1]
	}
	return part
}
