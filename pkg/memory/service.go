package memory

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/conscious-go/pkg/errors"
	"github.com/theapemachine/conscious-go/pkg/logging"
)

// Service is the façade the tool surface talks to. It composes the
// repository and search engine for synchronous operations and hands
// asynchronous enrichment to the sync engine. One Service is constructed at
// process start and passed by reference; there are no package-level
// singletons.
type Service struct {
	repo    *Repository
	search  *SearchEngine
	sync    *SyncEngine
	vectors VectorStore
	graph   GraphStore
	logger  *log.Logger
	closed  atomic.Bool
}

func NewService(vectors VectorStore, graph GraphStore, embedder Embedder, extractor Extractor) *Service {
	repo := NewRepository(vectors, embedder)

	return &Service{
		repo:    repo,
		search:  NewSearchEngine(repo, embedder),
		sync:    NewSyncEngine(repo, graph, extractor),
		vectors: vectors,
		graph:   graph,
		logger:  logging.Named("service"),
	}
}

// ConfigureSearch overrides the ranking defaults. Zero values keep the
// current setting.
func (s *Service) ConfigureSearch(minScore, keywordWeight float64) {
	if minScore != 0 {
		s.search.MinScore = minScore
	}
	if keywordWeight != 0 {
		s.search.KeywordWeight = keywordWeight
	}
}

// ConfigureSync overrides the per-item extractor timeout used during sync
// runs. A zero duration keeps the default.
func (s *Service) ConfigureSync(extractTimeout time.Duration) {
	if extractTimeout > 0 {
		s.sync.ExtractTimeout = extractTimeout
	}
}

// Initialize verifies both stores are reachable before the service takes
// traffic. The graph store being down is not fatal: saves and searches only
// need the vector store, and sync retries on its own schedule.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.vectors.Ping(ctx); err != nil {
		return errors.NewStoreConnectivity("vector", err)
	}

	if err := s.graph.Ping(ctx); err != nil {
		s.logger.Warn("graph store unreachable, projections deferred", "error", err)
	}

	return nil
}

// Close is idempotent.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("memory service closed")
	return nil
}

func (s *Service) Save(ctx context.Context, in SaveInput) (Memory, error) {
	return s.repo.Save(ctx, in)
}

func (s *Service) Get(ctx context.Context, id string) (Memory, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Search(ctx context.Context, req SearchRequest) (*ResultPage, error) {
	return s.search.Search(ctx, req)
}

// SearchByTimeRange is Search constrained to a creation-time window.
func (s *Service) SearchByTimeRange(ctx context.Context, req SearchRequest, since, until time.Time) (*ResultPage, error) {
	req.Filters.Since = since
	req.Filters.Until = until
	return s.search.Search(ctx, req)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Memory, error) {
	return s.repo.Update(ctx, id, in)
}

// Delete removes the memory and cascades into the graph projection. A
// failed cascade is logged, not surfaced: the projection is derived data and
// the next full resync removes any orphan.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}

	if err := s.graph.DeleteMemoryNode(ctx, id); err != nil {
		s.logger.Warn("graph cascade failed, orphan removed on next resync", "id", id, "error", err)
	}

	return true, nil
}

// GetRelated finds memories similar to an existing one, seeded by that
// memory's stored embedding rather than a fresh query. The memory itself is
// excluded from the results.
func (s *Service) GetRelated(ctx context.Context, id string, limit int) ([]SearchResult, error) {
	if limit < 1 {
		limit = DefaultPageSize
	}

	mem, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// One extra hit because the seed memory matches itself perfectly.
	hits, err := s.vectors.Query(ctx, mem.Embedding, Filter{}, limit+1)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, limit)
	for _, hit := range hits {
		if hit.Memory.ID == id {
			continue
		}
		results = append(results, SearchResult{
			Memory: hit.Memory,
			Score:  clamp01(hit.Similarity),
		})
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

// ListTags returns every tag in use with its memory count, sorted by count
// descending then name.
func (s *Service) ListTags(ctx context.Context) ([]TagCount, error) {
	counts := make(map[string]int)

	err := s.repo.Each(ctx, Filter{}, func(mem Memory) error {
		for _, tag := range mem.Tags {
			counts[tag]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})

	return out, nil
}

// TagCount is one row of the ListTags aggregation.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// GetStats aggregates over the whole collection in one pass.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{BySource: make(map[Source]int)}
	tags := make(map[string]bool)
	importanceSum := 0

	err := s.repo.Each(ctx, Filter{}, func(mem Memory) error {
		stats.Count++
		importanceSum += mem.Importance
		stats.BySource[mem.Source]++
		for _, tag := range mem.Tags {
			tags[tag] = true
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	stats.TagCount = len(tags)
	if stats.Count > 0 {
		stats.MeanImportance = float64(importanceSum) / float64(stats.Count)
	}

	return stats, nil
}

// RunGraphQuery executes a parameterized Cypher statement against the graph
// projection with pagination applied. Pre-existing trailing SKIP/LIMIT
// clauses are stripped so the caller cannot double-paginate.
func (s *Service) RunGraphQuery(ctx context.Context, statement string, params map[string]any, page, pageSize int) ([]map[string]any, error) {
	if statement == "" {
		return nil, errors.NewValidation("statement", "must not be empty")
	}

	return s.graph.RunQuery(ctx, paginateStatement(statement, page, pageSize), params)
}

// TriggerSync runs one sync pass immediately. Overlapping triggers are
// dropped by the engine's single-flight guard.
func (s *Service) TriggerSync(ctx context.Context, full bool) (SyncReport, error) {
	return s.sync.Run(ctx, full)
}

// SyncEngine exposes the engine for schedulers and stats hooks.
func (s *Service) SyncEngine() *SyncEngine {
	return s.sync
}
