// Package memory implements the conscious memory core: a canonical memory
// repository over a vector store, hybrid semantic+keyword search, and a
// background engine that projects memories into a knowledge graph.
package memory

import (
	"strings"
	"time"
)

// Source records how a memory came to exist: stated outright by the agent or
// inferred from conversation.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceInferred Source = "inferred"
)

// SyncState tracks whether a memory's graph projection is up to date. It is
// owned by the sync engine and never exposed in agent-facing results.
type SyncState string

const (
	SyncStateUnsynced SyncState = "unsynced"
	SyncStateSynced   SyncState = "synced"
	SyncStateFailed   SyncState = "failed"
)

// Memory is the canonical unit of storage. The vector store record is the
// single source of truth; the graph projection is derived and disposable.
type Memory struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Importance  int       `json:"importance"`
	SessionID   string    `json:"session_id,omitempty"`
	Context     string    `json:"context,omitempty"`
	Source      Source    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
	SyncState   SyncState `json:"-"`
	SyncRetries int       `json:"-"`
}

// Filter restricts which memories a listing or search considers. Zero values
// mean "no constraint". Filters are structural: they are applied before any
// scoring happens.
type Filter struct {
	Tags          []string
	MinImportance int
	MaxImportance int
	SessionID     string
	Since         time.Time
	Until         time.Time
	SyncState     SyncState
	Source        Source
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return len(f.Tags) == 0 &&
		f.MinImportance == 0 && f.MaxImportance == 0 &&
		f.SessionID == "" &&
		f.Since.IsZero() && f.Until.IsZero() &&
		f.SyncState == "" && f.Source == ""
}

// Matches applies the filter to a single memory. The store clients push the
// same semantics down into their query languages; the in-memory stores and
// the search engine share this implementation.
func (f Filter) Matches(m Memory) bool {
	if len(f.Tags) > 0 {
		tagged := make(map[string]bool, len(m.Tags))
		for _, t := range m.Tags {
			tagged[strings.ToLower(t)] = true
		}
		for _, want := range f.Tags {
			if !tagged[strings.ToLower(want)] {
				return false
			}
		}
	}

	if f.MinImportance > 0 && m.Importance < f.MinImportance {
		return false
	}

	if f.MaxImportance > 0 && m.Importance > f.MaxImportance {
		return false
	}

	if f.SessionID != "" && m.SessionID != f.SessionID {
		return false
	}

	if !f.Since.IsZero() && m.Timestamp.Before(f.Since) {
		return false
	}

	if !f.Until.IsZero() && m.Timestamp.After(f.Until) {
		return false
	}

	if f.SyncState != "" && m.SyncState != f.SyncState {
		return false
	}

	if f.Source != "" && m.Source != f.Source {
		return false
	}

	return true
}

// SearchRequest carries one search call's parameters.
type SearchRequest struct {
	Query    string
	Filters  Filter
	Page     int
	PageSize int
	MinScore float64
}

// SearchResult pairs a memory with its final hybrid score.
type SearchResult struct {
	Memory Memory  `json:"memory"`
	Score  float64 `json:"score"`
}

// ResultPage is one page of a ranked result set. Totals are exact for the
// data set observed during the call.
type ResultPage struct {
	Results      []SearchResult `json:"results"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalResults int            `json:"total_results"`
	TotalPages   int            `json:"total_pages"`
}

// QueryHit is a raw vector store similarity match.
type QueryHit struct {
	Memory     Memory
	Similarity float64
}

// Entity is a typed thing mentioned by a memory, as found by the extractor.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Key returns the deterministic graph identity of the entity, so repeated
// extractions of the same entity merge into one node.
func (e Entity) Key() string {
	return strings.ToLower(strings.TrimSpace(e.Type)) + ":" + strings.ToLower(strings.TrimSpace(e.Name))
}

// Relationship is a typed edge between two extracted entities.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Extraction is the full output of one extractor call.
type Extraction struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// Empty reports whether the extraction found nothing.
func (x Extraction) Empty() bool {
	return len(x.Entities) == 0 && len(x.Relationships) == 0
}

// Stats is the read-side aggregation returned by GetStats.
type Stats struct {
	Count          int            `json:"count"`
	TagCount       int            `json:"tag_count"`
	MeanImportance float64        `json:"mean_importance"`
	BySource       map[Source]int `json:"by_source"`
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	Ran        bool      `json:"ran"`
	Processed  int       `json:"processed"`
	Errors     int       `json:"errors"`
	Skipped    int       `json:"skipped"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}
