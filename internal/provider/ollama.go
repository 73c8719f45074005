package provider

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/loadforge/loadforge/internal/core/domain"
	"github.com/loadforge/loadforge/internal/core/errs"
	"github.com/loadforge/loadforge/internal/core/ports"
)

// OllamaAdapter speaks Ollama's native /api/chat wire format, which nests
// generation parameters under "options" and reports token counts as
// "prompt_eval_count"/"eval_count" rather than the OpenAI "usage" block.
type OllamaAdapter struct{}

func NewOllamaAdapter() ports.ProviderAdapter { return &OllamaAdapter{} }

func (a *OllamaAdapter) Name() string { return "ollama" }

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []wireMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"top_p"`
	NumPredict       int     `json:"num_predict"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`
}

func (a *OllamaAdapter) EncodeRequest(prompt string, params ports.RequestParams) ([]byte, error) {
	wr := buildWireRequest(prompt, params)

	req := ollamaRequest{
		Model:    wr.Model,
		Messages: wr.Messages,
		Stream:   wr.Stream,
		Options: ollamaOptions{
			Temperature:      wr.Temperature,
			TopP:             wr.TopP,
			NumPredict:       wr.MaxTokens,
			FrequencyPenalty: wr.FrequencyPenalty,
			PresencePenalty:  wr.PresencePenalty,
			Stop:             wr.Stop,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errs.New(errs.KindData, fmt.Errorf("encoding request: %w", err))
	}
	return body, nil
}

func (a *OllamaAdapter) DecodeResponse(body []byte) (*domain.ChatResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, errs.New(errs.KindProtocol, fmt.Errorf("response is not valid JSON"))
	}

	msg := gjson.GetBytes(body, "message")
	if !msg.Exists() {
		return nil, errs.New(errs.KindProtocol, fmt.Errorf("response has no message"))
	}

	finish := ""
	if gjson.GetBytes(body, "done").Bool() {
		finish = "stop"
	}

	return &domain.ChatResponse{
		Model:        gjson.GetBytes(body, "model").String(),
		Content:      msg.Get("content").String(),
		FinishReason: finish,
		Usage: domain.Usage{
			PromptTokens:     int(gjson.GetBytes(body, "prompt_eval_count").Int()),
			CompletionTokens: int(gjson.GetBytes(body, "eval_count").Int()),
			TotalTokens:      int(gjson.GetBytes(body, "prompt_eval_count").Int() + gjson.GetBytes(body, "eval_count").Int()),
		},
	}, nil
}

func (a *OllamaAdapter) DecodeStreamEvent(data []byte) (delta string, usage *domain.Usage, done bool, err error) {
	if !gjson.ValidBytes(data) {
		return "", nil, false, errs.New(errs.KindProtocol, fmt.Errorf("stream event is not valid JSON"))
	}

	delta = gjson.GetBytes(data, "message.content").String()
	done = gjson.GetBytes(data, "done").Bool()

	if done {
		usage = &domain.Usage{
			PromptTokens:     int(gjson.GetBytes(data, "prompt_eval_count").Int()),
			CompletionTokens: int(gjson.GetBytes(data, "eval_count").Int()),
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return delta, usage, done, nil
}
