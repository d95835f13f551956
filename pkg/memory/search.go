package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/conscious-go/pkg/errors"
	"github.com/theapemachine/conscious-go/pkg/logging"
)

const (
	// DefaultMinScore drops noise matches from ranked results.
	DefaultMinScore = 0.15

	// DefaultKeywordWeight scales the keyword floor relative to semantic
	// similarity.
	DefaultKeywordWeight = 0.8

	DefaultPageSize = 10
)

// SearchEngine ranks memories by combining semantic similarity with keyword
// overlap. The keyword component acts as a floor: a memory whose text
// plainly contains the query terms can never be buried by a degraded or
// unlucky embedding.
type SearchEngine struct {
	repo          *Repository
	embedder      Embedder
	KeywordWeight float64
	MinScore      float64
	logger        *log.Logger
}

func NewSearchEngine(repo *Repository, embedder Embedder) *SearchEngine {
	return &SearchEngine{
		repo:          repo,
		embedder:      embedder,
		KeywordWeight: DefaultKeywordWeight,
		MinScore:      DefaultMinScore,
		logger:        logging.Named("search"),
	}
}

// Search runs one hybrid search call: embed the query, fetch the structurally
// filtered candidate set, score, rank, cut below minScore, paginate.
func (e *SearchEngine) Search(ctx context.Context, req SearchRequest) (*ResultPage, error) {
	query := strings.TrimSpace(req.Query)

	// A call with no query and no structural constraint would be a full
	// collection scan with nothing to rank by.
	if query == "" && len(req.Filters.Tags) == 0 && req.Filters.SessionID == "" &&
		req.Filters.Since.IsZero() && req.Filters.Until.IsZero() {
		return nil, errors.NewValidation("query", "supply a query, tags, a session, or a time range")
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = DefaultPageSize
	}

	minScore := req.MinScore
	if minScore == 0 {
		minScore = e.MinScore
	} else if minScore < 0 {
		minScore = 0
	}

	var queryVec []float32
	if query != "" {
		var err error
		if queryVec, err = e.embedder.Embed(ctx, query); err != nil {
			// Only reachable with a non-resilient embedder wired in.
			return nil, err
		}
	}

	// Filters apply before scoring so irrelevant candidates are never
	// scored at all.
	candidates, err := e.repo.List(ctx, req.Filters)
	if err != nil {
		return nil, err
	}

	scored := make([]SearchResult, 0, len(candidates))

	for _, cand := range candidates {
		result := SearchResult{Memory: cand}

		if query != "" {
			result.Score = e.score(queryVec, query, cand)
			if result.Score < minScore {
				continue
			}
		}

		scored = append(scored, result)
	}

	sortResults(scored)

	e.logger.Debug("search ranked",
		"query", query, "candidates", len(candidates), "results", len(scored))

	return paginate(scored, req.Page, req.PageSize), nil
}

// score combines the two signals for one candidate.
func (e *SearchEngine) score(queryVec []float32, query string, cand Memory) float64 {
	semantic := math.NaN()
	if len(queryVec) > 0 && len(cand.Embedding) > 0 {
		semantic = clamp01(cosineSimilarity(queryVec, cand.Embedding))
	}

	keyword := keywordScore(query, cand.Text) * e.KeywordWeight

	if math.IsNaN(semantic) {
		return keyword
	}

	return math.Max(semantic, keyword)
}

// sortResults orders by score desc, then importance desc, then timestamp
// desc. The order is total and deterministic, which pagination depends on.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]

		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Memory.Importance != b.Memory.Importance {
			return a.Memory.Importance > b.Memory.Importance
		}
		if !a.Memory.Timestamp.Equal(b.Memory.Timestamp) {
			return a.Memory.Timestamp.After(b.Memory.Timestamp)
		}
		return a.Memory.ID < b.Memory.ID
	})
}

// paginate slices the ranked set. Pages are 1-based; a page past the end is
// an empty page, not an error. Totals are exact for the set observed during
// this call.
func paginate(results []SearchResult, page, pageSize int) *ResultPage {
	total := len(results)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}

	end := start + pageSize
	if end > total {
		end = total
	}

	return &ResultPage{
		Results:      results[start:end],
		Page:         page,
		PageSize:     pageSize,
		TotalResults: total,
		TotalPages:   totalPages,
	}
}

// cosineSimilarity is in [-1, 1]; mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// keywordScore is the fraction of distinct query tokens present in the text.
func keywordScore(query, text string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	textTokens := make(map[string]bool)
	for _, tok := range tokenize(text) {
		textTokens[tok] = true
	}

	seen := make(map[string]bool, len(queryTokens))
	matched := 0
	distinct := 0

	for _, tok := range queryTokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		distinct++
		if textTokens[tok] {
			matched++
		}
	}

	return float64(matched) / float64(distinct)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
