package memory

import (
	"context"
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/theapemachine/conscious-go/pkg/errors"
)

const DefaultAnthropicExtractionModel = anthropic.ModelClaude3_5HaikuLatest

// AnthropicExtractor is the Claude-backed alternative to LLMExtractor,
// selected through the extractor.provider config key.
type AnthropicExtractor struct {
	client *anthropic.Client
	Model  anthropic.Model
}

type AnthropicExtractorOption func(*AnthropicExtractor)

func NewAnthropicExtractor(options ...AnthropicExtractorOption) *AnthropicExtractor {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)

	extractor := &AnthropicExtractor{
		client: &client,
		Model:  DefaultAnthropicExtractionModel,
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor
}

func WithAnthropicModel(model string) AnthropicExtractorOption {
	return func(e *AnthropicExtractor) {
		e.Model = anthropic.Model(model)
	}
}

func WithAnthropicClient(client *anthropic.Client) AnthropicExtractorOption {
	return func(e *AnthropicExtractor) {
		e.client = client
	}
}

func (e *AnthropicExtractor) Extract(ctx context.Context, text string) (Extraction, error) {
	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.Model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{{
			Text: extractionPrompt,
		}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return Extraction{}, errors.NewProviderUnavailable("anthropic", err)
	}

	var raw string
	for _, block := range resp.Content {
		if textBlock, ok := block.AsAny().(anthropic.TextBlock); ok {
			raw += textBlock.Text
		}
	}

	return ParseExtraction(raw), nil
}
