package neo4j

import (
	"math"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// normalizeRow flattens a driver record into plain Go values so callers never
// see Bolt types. Counts come back from the driver as int64; they are widened
// down to int only when the value fits.
func normalizeRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for key, value := range row {
		out[key] = normalizeValue(value)
	}
	return out
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case int64:
		if v >= math.MinInt && v <= math.MaxInt {
			return int(v)
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		return normalizeRow(v)
	case dbtype.Node:
		return normalizeRow(v.Props)
	case dbtype.Relationship:
		props := normalizeRow(v.Props)
		props["type"] = v.Type
		return props
	case dbtype.Time:
		return v.Time()
	case dbtype.LocalDateTime:
		return v.Time()
	default:
		return value
	}
}
