// Package domain holds the plain data types shared across loadforge's
// components: the wire-adjacent chat-completion shapes, a single request's
// outcome, and the aggregates built from many outcomes.
package domain

import (
	"time"

	"github.com/loadforge/loadforge/internal/core/errs"
)

// Message is a single OpenAI-compatible chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible request body sent to the target.
type ChatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	Temperature      float64   `json:"temperature,omitempty"`
	TopP             float64   `json:"top_p,omitempty"`
	FrequencyPenalty float64   `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64   `json:"presence_penalty,omitempty"`
	Stop             []string  `json:"stop,omitempty"`
	Stream           bool      `json:"stream,omitempty"`
}

// Usage mirrors the OpenAI-compatible token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the decoded result of a single chat-completion call,
// whether it arrived buffered or was assembled from an SSE stream.
type ChatResponse struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	Usage        Usage
}

// Outcome classifies what happened to a single request attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailure     Outcome = "failure"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeCancelled   Outcome = "cancelled"
)

// RequestResult captures everything learned about one dispatched request:
// its place in the batch, timing, and either a response or a failure kind.
type RequestResult struct {
	RequestID string
	BatchID   string
	Round     int
	Index     int
	Target    string
	Prompt    string

	Outcome  Outcome
	Response *ChatResponse
	Err      *errs.Error

	StartedAt   time.Time
	CompletedAt time.Time
	TTFB        time.Duration // time to first byte/token; zero for non-streamed
	Latency     time.Duration
}

// Percentiles is the nearest-rank reduction of a latency sample set.
type Percentiles struct {
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
	Min time.Duration
	Max time.Duration
	Avg time.Duration
}

// RoundSummary aggregates the outcomes of one measured round.
type RoundSummary struct {
	Round       int
	Total       int
	Succeeded   int
	Failed      int
	TimedOut    int
	RateLimited int
	Cancelled   int
	Latency     Percentiles
	TTFB        Percentiles
	TotalTokens int
	Started     time.Time
	Completed   time.Time
}

// Report is the final, multi-round aggregate handed to the report writer.
type Report struct {
	Target      string
	Model       string
	Provider    string
	Rounds      []RoundSummary
	Overall     RoundSummary
	Throughput  float64 // successful requests/sec across the full run
	TokensPerS  float64 // estimated output tokens (len(content)/4) per second across the full run
	GeneratedAt time.Time
}
