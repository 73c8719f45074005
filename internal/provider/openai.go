package provider

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/loadforge/loadforge/internal/core/domain"
	"github.com/loadforge/loadforge/internal/core/errs"
	"github.com/loadforge/loadforge/internal/core/ports"
)

// OpenAIAdapter speaks the OpenAI chat-completion wire contract directly.
// Its request body (wireRequest) is also what OllamaAdapter builds first
// before mapping it onto Ollama's native format.
type OpenAIAdapter struct{}

func NewOpenAIAdapter() ports.ProviderAdapter { return &OpenAIAdapter{} }

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) EncodeRequest(prompt string, params ports.RequestParams) ([]byte, error) {
	req := buildWireRequest(prompt, params)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errs.New(errs.KindData, fmt.Errorf("encoding request: %w", err))
	}
	return body, nil
}

func (a *OpenAIAdapter) DecodeResponse(body []byte) (*domain.ChatResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, errs.New(errs.KindProtocol, fmt.Errorf("response is not valid JSON"))
	}

	id := gjson.GetBytes(body, "id").String()
	model := gjson.GetBytes(body, "model").String()
	choice := gjson.GetBytes(body, "choices.0")
	if !choice.Exists() {
		return nil, errs.New(errs.KindProtocol, fmt.Errorf("response has no choices"))
	}

	content := choice.Get("message.content").String()
	finish := choice.Get("finish_reason").String()

	return &domain.ChatResponse{
		ID:           id,
		Model:        model,
		Content:      content,
		FinishReason: finish,
		Usage: domain.Usage{
			PromptTokens:     int(gjson.GetBytes(body, "usage.prompt_tokens").Int()),
			CompletionTokens: int(gjson.GetBytes(body, "usage.completion_tokens").Int()),
			TotalTokens:      int(gjson.GetBytes(body, "usage.total_tokens").Int()),
		},
	}, nil
}

func (a *OpenAIAdapter) DecodeStreamEvent(data []byte) (delta string, usage *domain.Usage, done bool, err error) {
	if !gjson.ValidBytes(data) {
		return "", nil, false, errs.New(errs.KindProtocol, fmt.Errorf("stream event is not valid JSON"))
	}

	choice := gjson.GetBytes(data, "choices.0")
	if choice.Exists() {
		delta = choice.Get("delta.content").String()
		if choice.Get("finish_reason").String() == "stop" {
			done = true
		}
	}

	if u := gjson.GetBytes(data, "usage"); u.Exists() {
		usage = &domain.Usage{
			PromptTokens:     int(u.Get("prompt_tokens").Int()),
			CompletionTokens: int(u.Get("completion_tokens").Int()),
			TotalTokens:      int(u.Get("total_tokens").Int()),
		}
	}

	return delta, usage, done, nil
}

// buildWireRequest assembles the shared OpenAI-compatible body, applying
// spec.md's documented defaults to any zero-valued (i.e. omitted) field.
func buildWireRequest(prompt string, params ports.RequestParams) wireRequest {
	messages := make([]wireMessage, 0, 2)
	if params.System != "" {
		messages = append(messages, wireMessage{Role: "system", Content: params.System})
	}
	messages = append(messages, wireMessage{Role: "user", Content: prompt})

	temperature := params.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	topP := params.TopP
	if topP == 0 {
		topP = defaultTopP
	}
	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return wireRequest{
		Model:            params.Model,
		Messages:         messages,
		Temperature:      temperature,
		TopP:             topP,
		MaxTokens:        maxTokens,
		Stream:           params.Stream,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
		Stop:             params.Stop,
	}
}
