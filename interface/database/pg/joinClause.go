package pg

import (
	"fmt"
	"strings"
)

func limitOffsetClause(page, limit int) string {
	if limit > 0 {
		if page > 0 {
			return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, page*limit)
		}
		return fmt.Sprintf(" LIMIT %d", limit)
	}
	return ""
}

// parseString escapes the LIKE special characters of s then replaces the wildcards: * by %, ? by _
// Return false if the string does not have ? or *
func parseString(s string) (string, bool) {
	s = strings.NewReplacer(`\`, `\\`, "_", `\_`, "%", `\%`).Replace(s)
	news := strings.NewReplacer("*", "%", "?", "_").Replace(s)
	return news, s != news
}

// parseLike returns the value to be used by the operator (=, LIKE or ILIKE)
// "(?i)" suffix for case-insensitivity
func parseLike(value string) (string, string) {
	if strings.HasSuffix(value, "(?i)") {
		s, _ := parseString(strings.TrimSuffix(value, "(?i)"))
		return s, "ILIKE"
	}
	if newv, parsed := parseString(value); parsed {
		return newv, "LIKE"
	}
	return value, "="
}

// joinClause builds a clause with positional parameters ($1, $2...)
type joinClause struct {
	Parameters []interface{}
	clause     []string
}

// append a clause whose %d verbs are replaced by the positions of the parameters
func (wc *joinClause) append(clause string, parameters ...interface{}) {
	positions := make([]interface{}, len(parameters))
	for i := range parameters {
		positions[i] = len(wc.Parameters) + i + 1
	}
	wc.Parameters = append(wc.Parameters, parameters...)
	wc.clause = append(wc.clause, fmt.Sprintf(clause, positions...))
}

func (wc joinClause) WhereClause() string {
	return wc.Clause(" WHERE ", " AND ", "")
}

func (wc joinClause) Clause(prefix, sep, suffix string) string {
	if len(wc.clause) > 0 {
		return prefix + strings.Join(wc.clause, sep) + suffix
	}
	return ""
}
