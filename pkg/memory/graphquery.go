package memory

import (
	"fmt"
	"regexp"
	"strings"
)

// Trailing SKIP/LIMIT clauses in a caller-supplied statement, in either
// order, possibly both, with literal or parameterized counts. Only trailing
// clauses are touched; SKIP/LIMIT inside subqueries stay as written.
var trailingPagination = regexp.MustCompile(`(?is)(\s+(SKIP|LIMIT)\s+(\d+|\$\w+))+\s*;?\s*$`)

// paginateStatement rewrites a Cypher statement for one result page. Any
// pagination already present at the tail is stripped first so the clauses
// are never duplicated.
func paginateStatement(statement string, page, pageSize int) string {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	stripped := strings.TrimSpace(trailingPagination.ReplaceAllString(statement, ""))

	return fmt.Sprintf("%s SKIP %d LIMIT %d", stripped, (page-1)*pageSize, pageSize)
}
