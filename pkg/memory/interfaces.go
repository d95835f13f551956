package memory

import "context"

// Embedder represents a service capable of generating embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Extractor turns free text into typed entities and relationships. A failed
// extraction is reported as an error; a clean "nothing found" is an empty
// Extraction.
type Extractor interface {
	Extract(ctx context.Context, text string) (Extraction, error)
}

// VectorStore is the durable home of canonical memory records, with
// similarity query support. Implementations must round-trip the full
// metadata set (tags, importance, session, context, source, timestamp, sync
// bookkeeping) losslessly.
type VectorStore interface {
	Upsert(ctx context.Context, mem Memory) error
	Get(ctx context.Context, id string) (Memory, error)
	Query(ctx context.Context, embedding []float32, filter Filter, topK int) ([]QueryHit, error)
	// List scans matching records a page at a time. An empty cursor starts
	// the scan; the returned cursor continues it, and an empty returned
	// cursor ends it.
	List(ctx context.Context, filter Filter, cursor string, limit int) ([]Memory, string, error)
	UpdatePayload(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// GraphStore manages the derived graph projection. All upserts carry merge
// semantics: applying them once or N times yields the same graph.
type GraphStore interface {
	UpsertMemoryNode(ctx context.Context, mem Memory) error
	ReplaceTags(ctx context.Context, memoryID string, tags []string) error
	UpsertEntity(ctx context.Context, ent Entity) error
	UpsertMention(ctx context.Context, memoryID string, ent Entity) error
	// UpsertEntityRelation links two entities already resolved to their
	// graph identities, so same-named entities of different types never
	// share an edge.
	UpsertEntityRelation(ctx context.Context, from, to Entity, relType string) error
	DeleteMemoryNode(ctx context.Context, memoryID string) error
	RunQuery(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error)
	Ping(ctx context.Context) error
}
