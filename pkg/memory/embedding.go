package memory

import (
	"context"
	"hash/fnv"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/log"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/theapemachine/conscious-go/pkg/errors"
	"github.com/theapemachine/conscious-go/pkg/logging"
	"github.com/theapemachine/conscious-go/pkg/utils"
)

const DefaultEmbeddingModel = "text-embedding-3-small"

// OpenAIEmbedder generates embeddings through the OpenAI API.
type OpenAIEmbedder struct {
	api   *openai.Client
	Model string
}

type OpenAIEmbedderOption func(*OpenAIEmbedder)

func NewOpenAIEmbedder(options ...OpenAIEmbedderOption) *OpenAIEmbedder {
	client := openai.NewClient(
		option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
	)

	embedder := &OpenAIEmbedder{
		api:   &client,
		Model: DefaultEmbeddingModel,
	}

	for _, option := range options {
		option(embedder)
	}

	return embedder
}

func WithEmbedderModel(model string) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.Model = model
	}
}

func WithEmbedderClient(client *openai.Client) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.api = client
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
	})
	if err != nil {
		return nil, errors.NewProviderUnavailable("openai", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.NewProviderUnavailable("openai", errors.New("no embeddings returned"))
	}
	return utils.ConvertToFloat32(resp.Data[0].Embedding), nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, errors.NewProviderUnavailable("openai", err)
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = utils.ConvertToFloat32(d.Embedding)
	}
	return out, nil
}

// FallbackEmbedder produces deterministic hash-derived vectors. The vectors
// carry no semantic signal, but they keep save and search available while
// the real provider is down, and the same text always maps to the same
// vector.
type FallbackEmbedder struct {
	Dimension int
}

func NewFallbackEmbedder(dimension int) *FallbackEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &FallbackEmbedder{Dimension: dimension}
}

func (e *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.Dimension)
	var norm float64

	for i := range vec {
		h := fnv.New64a()
		h.Write([]byte(text))
		h.Write([]byte{byte(i), byte(i >> 8)})
		// Map the hash onto [-1, 1].
		v := float64(int64(h.Sum64())) / math.MaxInt64
		vec[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}

func (e *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = e.Embed(ctx, text)
	}
	return out, nil
}

// ResilientEmbedder tries the primary provider and silently degrades to the
// deterministic fallback on any failure, so a provider outage never blocks a
// write or a search.
type ResilientEmbedder struct {
	primary  Embedder
	fallback Embedder
	timeout  time.Duration
	logger   *log.Logger
}

func NewResilientEmbedder(primary Embedder, fallback Embedder, timeout time.Duration) *ResilientEmbedder {
	if fallback == nil {
		fallback = NewFallbackEmbedder(0)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ResilientEmbedder{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		logger:   logging.Named("embedder"),
	}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.primary != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		vec, err := e.primary.Embed(callCtx, text)
		cancel()

		if err == nil {
			return vec, nil
		}

		e.logger.Warn("primary embedder failed, using fallback", "error", err)
	}

	return e.fallback.Embed(ctx, text)
}

func (e *ResilientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.primary != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		vecs, err := e.primary.EmbedBatch(callCtx, texts)
		cancel()

		if err == nil {
			return vecs, nil
		}

		e.logger.Warn("primary embedder failed, using fallback", "error", err)
	}

	return e.fallback.EmbedBatch(ctx, texts)
}
