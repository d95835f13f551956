package memory

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cohesivestack/valgo"
	"github.com/google/uuid"

	"github.com/theapemachine/conscious-go/pkg/errors"
	"github.com/theapemachine/conscious-go/pkg/logging"
)

// listPageSize is the store page size used by Each. Iteration restarts from
// offset zero on every call, which is what makes the sequence restartable.
const listPageSize = 256

// Repository owns the canonical record of every memory: validation, ID
// assignment, importance normalization, embedding, and persistence into the
// vector store. It is the only component that writes memory records.
type Repository struct {
	vectors  VectorStore
	embedder Embedder
	fallback Embedder
	logger   *log.Logger
}

func NewRepository(vectors VectorStore, embedder Embedder) *Repository {
	return &Repository{
		vectors:  vectors,
		embedder: embedder,
		fallback: NewFallbackEmbedder(0),
		logger:   logging.Named("repository"),
	}
}

// SaveInput carries the agent-supplied fields for a new memory. Importance
// is a float so callers may pass either an integer score or a normalized
// (0,1) value.
type SaveInput struct {
	Text       string
	Tags       []string
	Importance float64
	SessionID  string
	Context    string
	Source     Source
}

// UpdateInput carries a partial update. Nil fields are left untouched; a
// supplied tag slice replaces the old set rather than merging into it.
type UpdateInput struct {
	Text       *string
	Tags       *[]string
	Importance *float64
	Context    *string
}

func (r *Repository) Save(ctx context.Context, in SaveInput) (Memory, error) {
	val := valgo.Is(valgo.String(in.Text, "text").Not().Blank())
	if !val.Valid() {
		return Memory{}, errors.NewValidation("text", "must not be blank")
	}

	importance, err := normalizeImportance(in.Importance)
	if err != nil {
		return Memory{}, err
	}

	source := in.Source
	if source == "" {
		source = SourceExplicit
	}

	mem := Memory{
		ID:         uuid.NewString(),
		Text:       strings.TrimSpace(in.Text),
		Tags:       dedupeTags(in.Tags),
		Importance: importance,
		SessionID:  in.SessionID,
		Context:    in.Context,
		Source:     source,
		Timestamp:  time.Now().UTC(),
		SyncState:  SyncStateUnsynced,
	}

	mem.Embedding = r.embed(ctx, mem.Text)

	if err := r.vectors.Upsert(ctx, mem); err != nil {
		return Memory{}, err
	}

	r.logger.Debug("memory saved", "id", mem.ID, "importance", mem.Importance, "tags", len(mem.Tags))

	return mem, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Memory, error) {
	return r.vectors.Get(ctx, id)
}

func (r *Repository) Update(ctx context.Context, id string, in UpdateInput) (Memory, error) {
	mem, err := r.vectors.Get(ctx, id)
	if err != nil {
		return Memory{}, err
	}

	if in.Text != nil {
		text := strings.TrimSpace(*in.Text)
		if text == "" {
			return Memory{}, errors.NewValidation("text", "must not be blank")
		}
		if text != mem.Text {
			mem.Text = text
			mem.Embedding = r.embed(ctx, text)
		}
	}

	if in.Tags != nil {
		// New tags replace the old set; the graph projection converges on
		// the next sync run.
		mem.Tags = dedupeTags(*in.Tags)
	}

	if in.Importance != nil {
		importance, err := normalizeImportance(*in.Importance)
		if err != nil {
			return Memory{}, err
		}
		mem.Importance = importance
	}

	if in.Context != nil {
		mem.Context = *in.Context
	}

	// Timestamp stays the creation time; only the projection bookkeeping
	// resets.
	mem.SyncState = SyncStateUnsynced
	mem.SyncRetries = 0

	if err := r.vectors.Upsert(ctx, mem); err != nil {
		return Memory{}, err
	}

	return mem, nil
}

// Delete removes the canonical record. It is idempotent: deleting an absent
// memory reports false rather than an error.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := r.vectors.Get(ctx, id); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := r.vectors.Delete(ctx, id); err != nil {
		return false, err
	}

	return true, nil
}

// Each walks every memory matching the filter in store order, one store page
// at a time. The walk always restarts from the beginning of the scan, and
// returning an error from fn stops it.
func (r *Repository) Each(ctx context.Context, filter Filter, fn func(Memory) error) error {
	cursor := ""

	for {
		page, next, err := r.vectors.List(ctx, filter, cursor, listPageSize)
		if err != nil {
			return err
		}

		for _, mem := range page {
			if err := fn(mem); err != nil {
				return err
			}
		}

		if next == "" {
			return nil
		}

		cursor = next
	}
}

// List materializes Each into a slice.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Memory, error) {
	var out []Memory

	err := r.Each(ctx, filter, func(mem Memory) error {
		out = append(out, mem)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// SetSyncState records a sync outcome for a memory. Only the sync engine
// calls this.
func (r *Repository) SetSyncState(ctx context.Context, id string, state SyncState, retries int) error {
	return r.vectors.UpdatePayload(ctx, id, map[string]any{
		metaSyncState:   string(state),
		metaSyncRetries: retries,
	})
}

func (r *Repository) embed(ctx context.Context, text string) []float32 {
	if r.embedder != nil {
		vec, err := r.embedder.Embed(ctx, text)
		if err == nil {
			return vec
		}
		r.logger.Warn("embedding provider failed, falling back to hash vector", "error", err)
	}

	vec, _ := r.fallback.Embed(ctx, text)
	return vec
}

// normalizeImportance applies the importance policy: values in (0,1) are
// linearly rescaled onto [1,10] (callers may pass a normalized score), whole
// values 1..10 pass through, everything else is rejected.
func normalizeImportance(v float64) (int, error) {
	if v > 0 && v < 1 {
		scaled := int(math.Round(v * 10))
		if scaled < 1 {
			scaled = 1
		}
		return scaled, nil
	}

	if v != math.Trunc(v) {
		return 0, errors.NewValidation("importance", "must be an integer between 1 and 10, or a value in (0,1)")
	}

	importance := int(v)
	val := valgo.Is(valgo.Number(importance, "importance").Between(1, 10))
	if !val.Valid() {
		return 0, errors.NewValidation("importance", "must be between 1 and 10")
	}

	return importance, nil
}

// dedupeTags trims, drops empties, and removes case-insensitive duplicates
// while preserving first-seen order (and casing).
func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
