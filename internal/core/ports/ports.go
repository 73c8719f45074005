// Package ports declares the small interfaces that let loadforge's
// components swap concrete implementations: where prompts come from, how a
// provider's wire format is built/parsed, and where a finished report goes.
package ports

import (
	"context"

	"github.com/loadforge/loadforge/internal/core/domain"
)

// PromptSource yields the prompt strings a benchmark run will send.
type PromptSource interface {
	Load(ctx context.Context) ([]string, error)
}

// RequestParams are the generation knobs applied uniformly to every request
// in a run, independent of which provider adapter builds the wire body.
type RequestParams struct {
	Model            string
	System           string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	Stop             []string
	Stream           bool
}

// ProviderAdapter translates between loadforge's domain types and a
// specific chat-completion API's wire format.
type ProviderAdapter interface {
	// Name returns the registry key this adapter was registered under.
	Name() string

	// EncodeRequest builds the JSON body for a single chat-completion call.
	EncodeRequest(prompt string, params RequestParams) ([]byte, error)

	// DecodeResponse parses a complete, non-streamed response body.
	DecodeResponse(body []byte) (*domain.ChatResponse, error)

	// DecodeStreamEvent parses one SSE "data:" payload into an incremental
	// content delta. done is true once the terminal sentinel is seen;
	// delta is empty (and err nil) for control events carrying no content.
	DecodeStreamEvent(data []byte) (delta string, usage *domain.Usage, done bool, err error)
}

// ResultWriter persists a finished Report in some format/location.
type ResultWriter interface {
	// Format returns the short name this writer registers under (json,
	// csv, xml) — used to build the default output path's extension.
	Format() string
	Write(ctx context.Context, path string, report *domain.Report) error
}

// ScoringEvaluator judges a single response's quality against a prompt,
// e.g. an LLM-as-judge or a reference-answer comparator. It has no
// implementation in this tree: scoring a model's output is a distinct
// concern from measuring how fast and reliably it responds, and is left
// as an external collaborator a caller can plug in later.
type ScoringEvaluator interface {
	Score(ctx context.Context, prompt string, response *domain.ChatResponse) (float64, error)
}
