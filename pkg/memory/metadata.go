package memory

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata payload keys shared by every VectorStore implementation. The
// payload must survive a JSON round-trip through the store unchanged, which
// is why decoding tolerates the generic shapes JSON hands back ([]any,
// float64, json.Number).
const (
	metaText        = "text"
	metaTags        = "tags"
	metaImportance  = "importance"
	metaSessionID   = "sessionId"
	metaContext     = "context"
	metaSource      = "source"
	metaTimestamp   = "timestamp"
	metaSyncState   = "syncState"
	metaSyncRetries = "syncRetries"
)

// EncodeMetadata flattens a memory into the store payload.
func EncodeMetadata(m Memory) map[string]any {
	return map[string]any{
		metaText:        m.Text,
		metaTags:        m.Tags,
		metaImportance:  m.Importance,
		metaSessionID:   m.SessionID,
		metaContext:     m.Context,
		metaSource:      string(m.Source),
		metaTimestamp:   m.Timestamp.UTC().Format(time.RFC3339Nano),
		metaSyncState:   string(m.SyncState),
		metaSyncRetries: m.SyncRetries,
	}
}

// DecodeMemory rebuilds a memory from a store record.
func DecodeMemory(id string, embedding []float32, payload map[string]any) (Memory, error) {
	if payload == nil {
		return Memory{}, fmt.Errorf("empty payload for memory %s", id)
	}

	m := Memory{
		ID:        id,
		Embedding: embedding,
	}

	m.Text, _ = payload[metaText].(string)
	m.SessionID, _ = payload[metaSessionID].(string)
	m.Context, _ = payload[metaContext].(string)

	if s, ok := payload[metaSource].(string); ok {
		m.Source = Source(s)
	}

	if s, ok := payload[metaSyncState].(string); ok && s != "" {
		m.SyncState = SyncState(s)
	} else {
		m.SyncState = SyncStateUnsynced
	}

	m.Tags = decodeStrings(payload[metaTags])
	m.Importance = decodeInt(payload[metaImportance])
	m.SyncRetries = decodeInt(payload[metaSyncRetries])

	if ts, ok := payload[metaTimestamp].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			m.Timestamp = t
		}
	}

	return m, nil
}

func decodeStrings(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func decodeInt(v any) int {
	switch vv := v.(type) {
	case int:
		return vv
	case int64:
		return int(vv)
	case float64:
		return int(vv)
	case json.Number:
		if n, err := vv.Int64(); err == nil {
			return int(n)
		}
	}
	return 0
}
