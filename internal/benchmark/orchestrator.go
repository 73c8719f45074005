// Package benchmark runs the warmup-then-measured-rounds procedure C6
// describes, reducing each round's request latencies to percentiles and
// the whole run to a Report.
package benchmark

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/loadforge/loadforge/internal/batch"
	"github.com/loadforge/loadforge/internal/core/domain"
	"github.com/loadforge/loadforge/internal/core/ports"
	"github.com/loadforge/loadforge/internal/logger"
)

// fixedFallbackPrompt is sent when the prompt source yields nothing,
// rather than failing the run outright.
const fixedFallbackPrompt = "Say hello in one short sentence."

// Config configures one orchestrator run.
type Config struct {
	Target            string
	Model             string
	Provider          string
	WarmupIterations  int
	TestIterations    int
	Rounds            int
	Concurrent        int
	BatchDeadline     time.Duration
	PerRequestTimeout time.Duration
}

// Dispatch sends one prompt and reports its outcome; the orchestrator
// doesn't know or care whether that means a buffered or streamed call.
type Dispatch func(ctx context.Context, prompt string) (resp *domain.ChatResponse, ttfb time.Duration, err error)

// Reporter receives progress events as a run proceeds, letting a CLI
// progress view or live dashboard observe rounds as they finish without the
// orchestrator depending on any particular presentation layer.
type Reporter interface {
	RoundComplete(summary domain.RoundSummary)
}

// Orchestrator runs the warmup + measured-round procedure over a
// batch.Executor, reducing each round's samples into a domain.Report.
type Orchestrator struct {
	cfg      Config
	executor *batch.Executor
	source   ports.PromptSource
	dispatch Dispatch
	progress Reporter
	log      logger.StyledLogger
}

// New builds an Orchestrator. progress may be nil, in which case no
// progress events are emitted.
func New(cfg Config, executor *batch.Executor, source ports.PromptSource, dispatch Dispatch, progress Reporter, log logger.StyledLogger) *Orchestrator {
	return &Orchestrator{cfg: cfg, executor: executor, source: source, dispatch: dispatch, progress: progress, log: log}
}

// Run executes the full procedure: load prompts (falling back to a fixed
// prompt on failure), warm up, then run Rounds measured rounds, returning
// the aggregated Report.
func (o *Orchestrator) Run(ctx context.Context) (*domain.Report, error) {
	prompts := o.loadPrompts(ctx)

	if o.cfg.WarmupIterations > 0 {
		o.runRound(ctx, -1, prompts, o.cfg.WarmupIterations, true)
	}

	rounds := o.cfg.Rounds
	if rounds < 1 {
		rounds = 1
	}

	report := &domain.Report{
		Target:      o.cfg.Target,
		Model:       o.cfg.Model,
		Provider:    o.cfg.Provider,
		GeneratedAt: time.Now(),
	}

	var allResults []domain.RequestResult
	for round := 1; round <= rounds; round++ {
		summary, results := o.runRound(ctx, round, prompts, o.cfg.TestIterations, false)
		report.Rounds = append(report.Rounds, summary)
		allResults = append(allResults, results...)

		if o.progress != nil {
			o.progress.RoundComplete(summary)
		}
	}

	report.Overall = summarise(0, report.GeneratedAt, allResults)
	report.Throughput, report.TokensPerS = throughput(report.Overall)

	return report, nil
}

func (o *Orchestrator) loadPrompts(ctx context.Context) []string {
	if o.source == nil {
		return []string{fixedFallbackPrompt}
	}

	prompts, err := o.source.Load(ctx)
	if err != nil || len(prompts) == 0 {
		if o.log != nil {
			o.log.Warn("prompt source unavailable, falling back to fixed prompt", "error", err)
		}
		return []string{fixedFallbackPrompt}
	}
	return prompts
}

// runRound dispatches n requests sampling prompts uniformly at random,
// returning the round's RoundSummary and its raw results. With discard set
// (the warmup round, numbered -1) a dispatched round returns a zero
// RoundSummary and no results.
func (o *Orchestrator) runRound(ctx context.Context, round int, prompts []string, n int, discard bool) (domain.RoundSummary, []domain.RequestResult) {
	started := time.Now()
	if n <= 0 {
		return summarise(round, started, nil), nil
	}

	tasks := make([]batch.Task, n)
	for i := 0; i < n; i++ {
		prompt := prompts[rand.IntN(len(prompts))]
		tasks[i] = batch.Task{
			RequestID: roundRequestID(round, i),
			Deadline:  o.cfg.PerRequestTimeout,
			Run: func(ctx context.Context) (*domain.ChatResponse, time.Duration, error) {
				return o.dispatch(ctx, prompt)
			},
		}
	}

	outcome, err := o.executor.Run(ctx, batchID(round), tasks)
	if err != nil {
		return summarise(round, started, nil), nil
	}

	if discard {
		return domain.RoundSummary{}, nil
	}

	return summarise(round, started, outcome.Results), outcome.Results
}

func throughput(overall domain.RoundSummary) (requestsPerSecond, tokensPerSecond float64) {
	elapsed := overall.Completed.Sub(overall.Started).Seconds()
	if elapsed <= 0 {
		return 0, 0
	}
	return float64(overall.Succeeded) / elapsed, float64(overall.TotalTokens) / elapsed
}

func roundRequestID(round, index int) string {
	return itoa(round) + "-" + itoa(index)
}

func batchID(round int) string {
	return "round-" + itoa(round)
}

func itoa(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
