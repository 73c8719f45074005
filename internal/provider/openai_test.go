package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadforge/loadforge/internal/core/ports"
)

func TestOpenAIAdapter_EncodeRequest_AppliesDefaults(t *testing.T) {
	a := NewOpenAIAdapter()

	body, err := a.EncodeRequest("hello", ports.RequestParams{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	var decoded wireRequest
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, defaultTemperature, decoded.Temperature)
	assert.Equal(t, defaultTopP, decoded.TopP)
	assert.Equal(t, defaultMaxTokens, decoded.MaxTokens)
	assert.Equal(t, []wireMessage{{Role: "user", Content: "hello"}}, decoded.Messages)
}

func TestOpenAIAdapter_EncodeRequest_WithSystemPrompt(t *testing.T) {
	a := NewOpenAIAdapter()

	body, err := a.EncodeRequest("hello", ports.RequestParams{Model: "gpt-4o-mini", System: "be terse"})
	require.NoError(t, err)

	var decoded wireRequest
	require.NoError(t, json.Unmarshal(body, &decoded))

	require.Len(t, decoded.Messages, 2)
	assert.Equal(t, "system", decoded.Messages[0].Role)
	assert.Equal(t, "user", decoded.Messages[1].Role)
}

func TestOpenAIAdapter_DecodeResponse(t *testing.T) {
	a := NewOpenAIAdapter()
	body := []byte(`{
		"id":"chatcmpl-1","model":"gpt-4o-mini",
		"choices":[{"index":0,"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}
	}`)

	resp, err := a.DecodeResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestOpenAIAdapter_DecodeResponse_NoChoices(t *testing.T) {
	a := NewOpenAIAdapter()
	_, err := a.DecodeResponse([]byte(`{"id":"x","choices":[]}`))
	require.Error(t, err)
}

func TestOpenAIAdapter_DecodeStreamEvent(t *testing.T) {
	a := NewOpenAIAdapter()

	delta, usage, done, err := a.DecodeStreamEvent([]byte(`{"choices":[{"delta":{"content":"hi"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", delta)
	assert.Nil(t, usage)
	assert.False(t, done)

	_, _, done, err = a.DecodeStreamEvent([]byte(`{"choices":[{"delta":{},"finish_reason":"stop"}]}`))
	require.NoError(t, err)
	assert.True(t, done)
}

func TestOpenAIAdapter_DecodeStreamEvent_InvalidJSON(t *testing.T) {
	a := NewOpenAIAdapter()
	_, _, _, err := a.DecodeStreamEvent([]byte(`not json`))
	require.Error(t, err)
}

func TestRegistry_GetDefaultsToOpenAI(t *testing.T) {
	r := NewRegistry()

	a, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, "openai", a.Name())
}

func TestRegistry_GetUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nonexistent")
	require.Error(t, err)
}

func TestRegistry_GetOllama(t *testing.T) {
	r := NewRegistry()
	a, err := r.Get("ollama")
	require.NoError(t, err)
	assert.Equal(t, "ollama", a.Name())
}
