package queryrender

import "strings"

// SplitStatements splits SQL into its statements, on the semicolons that are not inside quoted literals.
// Empty statements are dropped.
func SplitStatements(sql string) []string {
	var statements []string
	for _, statement := range splitUnquoted(sql, ';', false) {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		statements = append(statements, statement)
	}
	return statements
}

// splitUnquoted splits s on sep, skipping separators inside single quoted literals.
// If nested is true, separators inside brackets are skipped too.
func splitUnquoted(s string, sep rune, nested bool) []string {
	var parts []string
	var depth int
	var inQuote bool
	start := 0
	for i, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case inQuote:
		case nested && (r == '(' || r == '['):
			depth++
		case nested && (r == ')' || r == ']'):
			depth--
		case r == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// replaceUnquoted applies replace to the parts of sql outside single quoted literals. Literals are kept as they are.
func replaceUnquoted(sql string, replace func(string) string) string {
	var sb strings.Builder
	var inQuote bool
	start := 0
	for i, r := range sql {
		if r != '\'' {
			continue
		}
		if inQuote {
			sb.WriteString(sql[start : i+1])
			start = i + 1
		} else {
			sb.WriteString(replace(sql[start:i]))
			start = i
		}
		inQuote = !inQuote
	}

	if inQuote {
		sb.WriteString(sql[start:])
	} else {
		sb.WriteString(replace(sql[start:]))
	}
	return sb.String()
}
