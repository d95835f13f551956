package memory

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/theapemachine/conscious-go/pkg/errors"
)

// MockVectorStore is an in-memory VectorStore for tests and offline runs. It
// honors the same filter and ordering semantics the real client pushes down
// to Qdrant.
type MockVectorStore struct {
	mu       sync.RWMutex
	memories map[string]Memory

	// FailWith, when set, makes every call fail as a connectivity error.
	FailWith error
}

func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		memories: make(map[string]Memory),
	}
}

func (s *MockVectorStore) fail() error {
	if s.FailWith != nil {
		return errors.NewStoreConnectivity("vector", s.FailWith)
	}
	return nil
}

func (s *MockVectorStore) Upsert(ctx context.Context, mem Memory) error {
	if err := s.fail(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[mem.ID] = mem
	return nil
}

func (s *MockVectorStore) Get(ctx context.Context, id string) (Memory, error) {
	if err := s.fail(); err != nil {
		return Memory{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, ok := s.memories[id]
	if !ok {
		return Memory{}, errors.NewNotFound(id)
	}
	return mem, nil
}

func (s *MockVectorStore) Query(ctx context.Context, embedding []float32, filter Filter, topK int) ([]QueryHit, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []QueryHit
	for _, mem := range s.memories {
		if !filter.Matches(mem) {
			continue
		}
		hits = append(hits, QueryHit{
			Memory:     mem,
			Similarity: cosineSimilarity(embedding, mem.Embedding),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Memory.ID < hits[j].Memory.ID
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MockVectorStore) List(ctx context.Context, filter Filter, cursor string, limit int) ([]Memory, string, error) {
	if err := s.fail(); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Memory
	for _, mem := range s.memories {
		if filter.Matches(mem) {
			all = append(all, mem)
		}
	}

	// Stable scan order so paging is restartable.
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.Before(all[j].Timestamp)
		}
		return all[i].ID < all[j].ID
	})

	offset := 0
	if cursor != "" {
		offset, _ = strconv.Atoi(cursor)
	}
	if offset >= len(all) {
		return nil, "", nil
	}

	all = all[offset:]
	next := ""
	if limit > 0 && len(all) > limit {
		all = all[:limit]
		next = strconv.Itoa(offset + limit)
	}
	return all, next, nil
}

func (s *MockVectorStore) UpdatePayload(ctx context.Context, id string, fields map[string]any) error {
	if err := s.fail(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.memories[id]
	if !ok {
		return errors.NewNotFound(id)
	}

	if v, ok := fields[metaSyncState].(string); ok {
		mem.SyncState = SyncState(v)
	}
	if v, ok := fields[metaSyncRetries]; ok {
		mem.SyncRetries = decodeInt(v)
	}

	s.memories[id] = mem
	return nil
}

func (s *MockVectorStore) Delete(ctx context.Context, id string) error {
	if err := s.fail(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memories, id)
	return nil
}

func (s *MockVectorStore) Ping(ctx context.Context) error {
	return s.fail()
}

// MockGraphStore is an in-memory GraphStore that records the projection as
// plain sets, enough for tests to assert idempotence and convergence.
type MockGraphStore struct {
	mu sync.RWMutex

	// FailWith, when set, makes every call fail as a connectivity error.
	FailWith error

	// QueryRows is returned verbatim from RunQuery.
	QueryRows []map[string]any

	// LastStatement captures the most recent RunQuery statement.
	LastStatement string

	nodes     map[string]Memory
	entities  map[string]Entity
	tags      map[string]map[string]bool
	mentions  map[string]map[string]bool
	relations map[string]bool
}

func NewMockGraphStore() *MockGraphStore {
	return &MockGraphStore{
		nodes:     make(map[string]Memory),
		entities:  make(map[string]Entity),
		tags:      make(map[string]map[string]bool),
		mentions:  make(map[string]map[string]bool),
		relations: make(map[string]bool),
	}
}

func (s *MockGraphStore) fail() error {
	if s.FailWith != nil {
		return errors.NewStoreConnectivity("graph", s.FailWith)
	}
	return nil
}

func (s *MockGraphStore) UpsertMemoryNode(ctx context.Context, mem Memory) error {
	if err := s.fail(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[mem.ID] = mem
	return nil
}

func (s *MockGraphStore) ReplaceTags(ctx context.Context, memoryID string, tags []string) error {
	if err := s.fail(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		set[strings.ToLower(tag)] = true
	}
	s.tags[memoryID] = set
	return nil
}

func (s *MockGraphStore) UpsertEntity(ctx context.Context, ent Entity) error {
	if err := s.fail(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[ent.Key()] = ent
	return nil
}

func (s *MockGraphStore) UpsertMention(ctx context.Context, memoryID string, ent Entity) error {
	if err := s.fail(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mentions[memoryID] == nil {
		s.mentions[memoryID] = make(map[string]bool)
	}
	s.mentions[memoryID][ent.Key()] = true
	return nil
}

func (s *MockGraphStore) UpsertEntityRelation(ctx context.Context, from, to Entity, relType string) error {
	if err := s.fail(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[relationKey(from, to, relType)] = true
	return nil
}

func relationKey(from, to Entity, relType string) string {
	return from.Key() + "|" + strings.ToLower(relType) + "|" + to.Key()
}

func (s *MockGraphStore) DeleteMemoryNode(ctx context.Context, memoryID string) error {
	if err := s.fail(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, memoryID)
	delete(s.tags, memoryID)
	delete(s.mentions, memoryID)
	return nil
}

func (s *MockGraphStore) RunQuery(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.LastStatement = statement
	s.mu.Unlock()

	return s.QueryRows, nil
}

func (s *MockGraphStore) Ping(ctx context.Context) error {
	return s.fail()
}

// HasMemoryNode reports whether the projection holds a node for the memory.
func (s *MockGraphStore) HasMemoryNode(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// TagsFor returns the projected tag set for a memory, sorted.
func (s *MockGraphStore) TagsFor(memoryID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.tags[memoryID]))
	for tag := range s.tags[memoryID] {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// HasRelation reports whether a specific key-resolved edge exists.
func (s *MockGraphStore) HasRelation(from, to Entity, relType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relations[relationKey(from, to, relType)]
}

// Counts returns (nodes, entities, mentions, relations) for idempotence
// assertions.
func (s *MockGraphStore) Counts() (int, int, int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mentions := 0
	for _, set := range s.mentions {
		mentions += len(set)
	}
	return len(s.nodes), len(s.entities), mentions, len(s.relations)
}

// MockEmbedder generates deterministic bag-of-words embeddings: texts that
// share tokens land in shared buckets, so cosine similarity behaves
// plausibly without a provider.
type MockEmbedder struct {
	Dimension int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dimension: 64}
}

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.Dimension)

	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%e.Dimension]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = e.Embed(ctx, text)
	}
	return out, nil
}
