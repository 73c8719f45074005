package benchmark

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadforge/loadforge/internal/batch"
	"github.com/loadforge/loadforge/internal/core/domain"
)

// fixedPromptSource always yields the same fixed set of prompts.
type fixedPromptSource struct {
	prompts []string
}

func (s fixedPromptSource) Load(ctx context.Context) ([]string, error) {
	return s.prompts, nil
}

// failingPromptSource always fails to load, exercising the fallback path.
type failingPromptSource struct{}

func (failingPromptSource) Load(ctx context.Context) ([]string, error) {
	return nil, errors.New("dataset unavailable")
}

// recordingReporter captures every RoundComplete call it receives.
type recordingReporter struct {
	rounds []domain.RoundSummary
}

func (r *recordingReporter) RoundComplete(summary domain.RoundSummary) {
	r.rounds = append(r.rounds, summary)
}

func countingDispatch(calls *atomic.Int64) Dispatch {
	return func(ctx context.Context, prompt string) (*domain.ChatResponse, time.Duration, error) {
		calls.Add(1)
		return &domain.ChatResponse{Content: "ok"}, time.Millisecond, nil
	}
}

func TestRun_WarmupDiscardedFromReport(t *testing.T) {
	var calls atomic.Int64
	cfg := Config{
		WarmupIterations: 2,
		TestIterations:   3,
		Rounds:           1,
		Concurrent:       2,
	}
	executor := batch.NewExecutor(cfg.Concurrent, 0)
	defer executor.Close()

	orch := New(cfg, executor, fixedPromptSource{prompts: []string{"hello"}}, countingDispatch(&calls), nil, nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	// warmup (2) + one measured round (3) = 5 dispatches total, but only
	// the measured round's 3 requests are reflected in the report.
	assert.Equal(t, int64(5), calls.Load())
	require.Len(t, report.Rounds, 1)
	assert.Equal(t, 3, report.Rounds[0].Total)
	assert.Equal(t, 3, report.Overall.Total)
	assert.Equal(t, 3, report.Overall.Succeeded)
}

func TestRun_NoWarmupWhenZero(t *testing.T) {
	var calls atomic.Int64
	cfg := Config{
		WarmupIterations: 0,
		TestIterations:   2,
		Rounds:           1,
		Concurrent:       2,
	}
	executor := batch.NewExecutor(cfg.Concurrent, 0)
	defer executor.Close()

	orch := New(cfg, executor, fixedPromptSource{prompts: []string{"hello"}}, countingDispatch(&calls), nil, nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, 2, report.Overall.Total)
}

func TestRun_MeasuredRoundsAggregated(t *testing.T) {
	var calls atomic.Int64
	cfg := Config{
		TestIterations: 3,
		Rounds:         2,
		Concurrent:     2,
	}
	executor := batch.NewExecutor(cfg.Concurrent, 0)
	defer executor.Close()

	orch := New(cfg, executor, fixedPromptSource{prompts: []string{"hello"}}, countingDispatch(&calls), nil, nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Rounds, 2)
	assert.Equal(t, 3, report.Rounds[0].Total)
	assert.Equal(t, 3, report.Rounds[1].Total)
	assert.Equal(t, 6, report.Overall.Total)
	assert.Equal(t, 6, report.Overall.Succeeded)
}

func TestRun_PromptSourceFailureFallsBackToFixedPrompt(t *testing.T) {
	var calls atomic.Int64
	var seenPrompt string
	dispatch := func(ctx context.Context, prompt string) (*domain.ChatResponse, time.Duration, error) {
		calls.Add(1)
		seenPrompt = prompt
		return &domain.ChatResponse{Content: "ok"}, 0, nil
	}

	cfg := Config{TestIterations: 1, Rounds: 1, Concurrent: 1}
	executor := batch.NewExecutor(cfg.Concurrent, 0)
	defer executor.Close()

	orch := New(cfg, executor, failingPromptSource{}, dispatch, nil, nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, fixedFallbackPrompt, seenPrompt)
	assert.Equal(t, 1, report.Overall.Total)
}

func TestRun_NotifiesReporterPerMeasuredRound(t *testing.T) {
	var calls atomic.Int64
	reporter := &recordingReporter{}

	cfg := Config{TestIterations: 2, Rounds: 3, Concurrent: 2}
	executor := batch.NewExecutor(cfg.Concurrent, 0)
	defer executor.Close()

	orch := New(cfg, executor, fixedPromptSource{prompts: []string{"hello"}}, countingDispatch(&calls), reporter, nil)

	_, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, reporter.rounds, 3)
	for i, r := range reporter.rounds {
		assert.Equal(t, i+1, r.Round)
		assert.Equal(t, 2, r.Total)
	}
}

func TestRun_PercentilesComputedOverSuccessesOnly(t *testing.T) {
	// Every other request fails instantly; successes sleep a small, fixed
	// amount so their latency percentiles are predictable and the failures
	// (which sleep none at all) can't skew Min/Max if counted.
	var calls atomic.Int64
	dispatch := func(ctx context.Context, prompt string) (*domain.ChatResponse, time.Duration, error) {
		n := calls.Add(1)
		if n%2 == 0 {
			return nil, 0, errors.New("simulated failure")
		}
		time.Sleep(5 * time.Millisecond)
		return &domain.ChatResponse{Content: "ok"}, 0, nil
	}

	cfg := Config{TestIterations: 10, Rounds: 1, Concurrent: 1}
	executor := batch.NewExecutor(cfg.Concurrent, 0)
	defer executor.Close()

	orch := New(cfg, executor, fixedPromptSource{prompts: []string{"hello"}}, dispatch, nil, nil)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, report.Overall.Total)
	assert.Equal(t, 5, report.Overall.Succeeded)
	assert.Equal(t, 5, report.Overall.Failed)
	// Every latency sample that fed the percentiles came from a successful
	// (5ms-sleeping) call; the instantly-failing calls must not pull Min
	// down toward zero.
	assert.GreaterOrEqual(t, report.Overall.Latency.Min, 5*time.Millisecond)
}
