package memory

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/theapemachine/conscious-go/pkg/errors"
)

const DefaultExtractionModel = openai.ChatModelGPT4oMini

const extractionPrompt = `You extract knowledge from short notes.
Given a note, respond with a single JSON object of this exact shape:
{"entities":[{"name":"...","type":"..."}],"relationships":[{"from":"...","to":"...","type":"..."}]}
Entity types: Person, Organization, Technology, Concept, Place, Event.
Relationship "from" and "to" must repeat entity names from "entities".
Respond with JSON only, no prose.`

// LLMExtractor asks an OpenAI chat model for the entities and relationships
// mentioned in a memory's text.
type LLMExtractor struct {
	api   *openai.Client
	Model string
}

type LLMExtractorOption func(*LLMExtractor)

func NewLLMExtractor(options ...LLMExtractorOption) *LLMExtractor {
	client := openai.NewClient(
		option.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
	)

	extractor := &LLMExtractor{
		api:   &client,
		Model: DefaultExtractionModel,
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor
}

func WithExtractorModel(model string) LLMExtractorOption {
	return func(e *LLMExtractor) {
		e.Model = model
	}
}

func WithExtractorClient(client *openai.Client) LLMExtractorOption {
	return func(e *LLMExtractor) {
		e.api = client
	}
}

func (e *LLMExtractor) Extract(ctx context.Context, text string) (Extraction, error) {
	resp, err := e.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return Extraction{}, errors.NewProviderUnavailable("openai", err)
	}

	if len(resp.Choices) == 0 {
		return Extraction{}, nil
	}

	// Malformed model output degrades to an empty extraction, never an
	// error: a memory without a projection is recoverable, a crashed sync
	// batch is not.
	return ParseExtraction(resp.Choices[0].Message.Content), nil
}

// NoopExtractor finds nothing. It keeps the sync engine runnable without an
// LLM provider configured.
type NoopExtractor struct{}

func (NoopExtractor) Extract(ctx context.Context, text string) (Extraction, error) {
	return Extraction{}, nil
}

// ParseExtraction parses model output into the fixed extraction shape. It
// strips the wrapping artifacts chat models like to add (markdown fences,
// prose around the JSON) and validates every item; anything that does not
// match the shape is dropped, and irrecoverable input yields an empty
// extraction.
func ParseExtraction(raw string) Extraction {
	payload := stripWrappers(raw)
	if payload == "" {
		return Extraction{}
	}

	var parsed Extraction
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return Extraction{}
	}

	out := Extraction{}
	seen := make(map[string]bool)

	for _, ent := range parsed.Entities {
		ent.Name = strings.TrimSpace(ent.Name)
		ent.Type = strings.TrimSpace(ent.Type)
		if ent.Name == "" {
			continue
		}
		if ent.Type == "" {
			ent.Type = "Concept"
		}
		if seen[ent.Key()] {
			continue
		}
		seen[ent.Key()] = true
		out.Entities = append(out.Entities, ent)
	}

	names := make(map[string]bool, len(out.Entities))
	for _, ent := range out.Entities {
		names[strings.ToLower(ent.Name)] = true
	}

	for _, rel := range parsed.Relationships {
		rel.From = strings.TrimSpace(rel.From)
		rel.To = strings.TrimSpace(rel.To)
		rel.Type = strings.TrimSpace(rel.Type)
		if rel.From == "" || rel.To == "" || rel.Type == "" {
			continue
		}
		// Relationships must connect entities the same extraction named.
		if !names[strings.ToLower(rel.From)] || !names[strings.ToLower(rel.To)] {
			continue
		}
		out.Relationships = append(out.Relationships, rel)
	}

	return out
}

// stripWrappers removes markdown fences and any prose surrounding the
// outermost JSON object.
func stripWrappers(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}

	return s[start : end+1]
}
