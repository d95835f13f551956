package memory

import "testing"

func TestPaginateStatement(t *testing.T) {
	cases := []struct {
		name      string
		statement string
		page      int
		pageSize  int
		want      string
	}{
		{
			"appends to a plain statement",
			"MATCH (n) RETURN n", 1, 10,
			"MATCH (n) RETURN n SKIP 0 LIMIT 10",
		},
		{
			"second page offsets by one page size",
			"MATCH (n) RETURN n", 3, 25,
			"MATCH (n) RETURN n SKIP 50 LIMIT 25",
		},
		{
			"strips a trailing limit",
			"MATCH (n) RETURN n LIMIT 500", 1, 10,
			"MATCH (n) RETURN n SKIP 0 LIMIT 10",
		},
		{
			"strips trailing skip and limit together",
			"MATCH (n) RETURN n SKIP 20 LIMIT 500;", 1, 10,
			"MATCH (n) RETURN n SKIP 0 LIMIT 10",
		},
		{
			"lowercase clauses are stripped too",
			"match (n) return n skip 5 limit 5", 2, 10,
			"match (n) return n SKIP 10 LIMIT 10",
		},
		{
			"strips parameterized pagination",
			"MATCH (n) RETURN n SKIP $offset LIMIT $count", 1, 10,
			"MATCH (n) RETURN n SKIP 0 LIMIT 10",
		},
		{
			"inner limits survive",
			"CALL { MATCH (m) RETURN m LIMIT 3 } RETURN count(*)", 1, 10,
			"CALL { MATCH (m) RETURN m LIMIT 3 } RETURN count(*) SKIP 0 LIMIT 10",
		},
		{
			"invalid page and size fall back to defaults",
			"MATCH (n) RETURN n", 0, 0,
			"MATCH (n) RETURN n SKIP 0 LIMIT 10",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := paginateStatement(tc.statement, tc.page, tc.pageSize); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
