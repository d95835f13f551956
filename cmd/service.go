package cmd

import (
	"context"

	"github.com/spf13/viper"

	"github.com/theapemachine/conscious-go/pkg/logging"
	"github.com/theapemachine/conscious-go/pkg/memory"
	"github.com/theapemachine/conscious-go/pkg/stores/neo4j"
	"github.com/theapemachine/conscious-go/pkg/stores/qdrant"
)

/*
buildService wires the memory service from the active configuration: the
Qdrant collection, the Neo4j projection, the embedding provider with its
deterministic fallback, and the configured entity extractor.
*/
func buildService(ctx context.Context) (*memory.Service, *neo4j.Store, error) {
	vectors := qdrant.New(
		viper.GetString("qdrant.endpoint"),
		viper.GetString("qdrant.collection"),
	)

	dimension := viper.GetInt("embedder.dimension")
	if err := vectors.EnsureCollection(ctx, dimension); err != nil {
		return nil, nil, err
	}

	graph, err := neo4j.New(
		viper.GetString("neo4j.uri"),
		viper.GetString("neo4j.username"),
		viper.GetString("neo4j.password"),
	)
	if err != nil {
		return nil, nil, err
	}

	embedder := memory.NewResilientEmbedder(
		memory.NewOpenAIEmbedder(memory.WithEmbedderModel(viper.GetString("embedder.model"))),
		memory.NewFallbackEmbedder(dimension),
		viper.GetDuration("embedder.timeout"),
	)

	service := memory.NewService(vectors, graph, embedder, buildExtractor())
	service.ConfigureSearch(
		viper.GetFloat64("search.min_score"),
		viper.GetFloat64("search.keyword_weight"),
	)
	service.ConfigureSync(viper.GetDuration("extractor.timeout"))

	if err := service.Initialize(ctx); err != nil {
		graph.Close(ctx)
		return nil, nil, err
	}

	// Constraints are best-effort at startup; an unreachable graph store is
	// retried by the sync scheduler anyway.
	if err := graph.EnsureConstraints(ctx); err != nil {
		logging.Named("cmd").Warn("graph constraints not applied", "error", err)
	}

	return service, graph, nil
}

func buildExtractor() memory.Extractor {
	model := viper.GetString("extractor.model")

	switch viper.GetString("extractor.provider") {
	case "anthropic":
		opts := []memory.AnthropicExtractorOption{}
		if model != "" {
			opts = append(opts, memory.WithAnthropicModel(model))
		}
		return memory.NewAnthropicExtractor(opts...)
	case "none":
		return memory.NoopExtractor{}
	default:
		opts := []memory.LLMExtractorOption{}
		if model != "" {
			opts = append(opts, memory.WithExtractorModel(model))
		}
		return memory.NewLLMExtractor(opts...)
	}
}
