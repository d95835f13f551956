package qdrant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/theapemachine/conscious-go/pkg/memory"
)

// Shadow payload fields stored alongside the canonical metadata so Qdrant
// filters can apply server-side. tsField is a numeric copy of the RFC3339
// timestamp for time windows; tagsLowerField is a lowercased copy of the
// tags, matching the case-insensitive tag semantics of Filter.Matches (the
// canonical "tags" key keeps the caller's casing).
const (
	tsField        = "ts"
	tagsLowerField = "tagsLower"
)

type point struct {
	ID      any             `json:"id"`
	Score   float64         `json:"score,omitempty"`
	Vector  json.RawMessage `json:"vector,omitempty"`
	Payload map[string]any  `json:"payload,omitempty"`
}

func (p point) toMemory() (memory.Memory, error) {
	id := fmt.Sprintf("%v", p.ID)

	var embedding []float32
	if len(p.Vector) > 0 {
		if err := json.Unmarshal(p.Vector, &embedding); err != nil {
			embedding = nil
		}
	}

	payload := p.Payload
	delete(payload, tsField)
	delete(payload, tagsLowerField)

	return memory.DecodeMemory(id, embedding, payload)
}

// encodeFilter translates the store-agnostic filter into Qdrant's filter DSL.
// Returns nil when there is nothing to constrain.
func encodeFilter(filter memory.Filter) map[string]any {
	if filter.IsZero() {
		return nil
	}

	var must []map[string]any

	for _, tag := range filter.Tags {
		must = append(must, map[string]any{
			"key":   tagsLowerField,
			"match": map[string]any{"value": strings.ToLower(tag)},
		})
	}

	if filter.MinImportance > 0 || filter.MaxImportance > 0 {
		rng := map[string]any{}
		if filter.MinImportance > 0 {
			rng["gte"] = filter.MinImportance
		}
		if filter.MaxImportance > 0 {
			rng["lte"] = filter.MaxImportance
		}
		must = append(must, map[string]any{
			"key":   "importance",
			"range": rng,
		})
	}

	if filter.SessionID != "" {
		must = append(must, map[string]any{
			"key":   "sessionId",
			"match": map[string]any{"value": filter.SessionID},
		})
	}

	if !filter.Since.IsZero() || !filter.Until.IsZero() {
		rng := map[string]any{}
		if !filter.Since.IsZero() {
			rng["gte"] = filter.Since.UTC().UnixNano()
		}
		if !filter.Until.IsZero() {
			rng["lte"] = filter.Until.UTC().UnixNano()
		}
		must = append(must, map[string]any{
			"key":   tsField,
			"range": rng,
		})
	}

	if filter.SyncState != "" {
		must = append(must, map[string]any{
			"key":   "syncState",
			"match": map[string]any{"value": string(filter.SyncState)},
		})
	}

	if filter.Source != "" {
		must = append(must, map[string]any{
			"key":   "source",
			"match": map[string]any{"value": string(filter.Source)},
		})
	}

	if len(must) == 0 {
		return nil
	}

	return map[string]any{"must": must}
}
