// Package app wires loadforge's components into the runnable CLI: it
// parses flags, builds the transport/provider/rate-limiter stack, drives
// one benchmark.Orchestrator run, and persists the resulting report.
package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/loadforge/loadforge/internal/batch"
	"github.com/loadforge/loadforge/internal/benchmark"
	"github.com/loadforge/loadforge/internal/config"
	"github.com/loadforge/loadforge/internal/core/domain"
	"github.com/loadforge/loadforge/internal/core/errs"
	"github.com/loadforge/loadforge/internal/core/ports"
	"github.com/loadforge/loadforge/internal/dataset"
	"github.com/loadforge/loadforge/internal/logger"
	"github.com/loadforge/loadforge/internal/progress"
	"github.com/loadforge/loadforge/internal/provider"
	"github.com/loadforge/loadforge/internal/ratelimit"
	"github.com/loadforge/loadforge/internal/report"
	"github.com/loadforge/loadforge/internal/transport"
	"github.com/loadforge/loadforge/internal/util"
	"github.com/loadforge/loadforge/pkg/container"
	"github.com/loadforge/loadforge/pkg/profiler"
)

// Application owns one benchmark run's full component graph, from flag
// parsing through to writing the finished report.
type Application struct {
	cfg *config.Config
	log logger.StyledLogger

	pool     *transport.Pool
	client   *transport.Client
	limiter  *ratelimit.Limiter
	adapter  ports.ProviderAdapter
	source   ports.PromptSource
	executor *batch.Executor
	progress *progress.Reporter
	writers  *report.Registry

	startTime time.Time
	lastRun   *domain.Report
}

// New parses the CLI flag set (and any configured file), validates it
// unless --dry-run is set, and builds every component a run needs. It does not start sending requests.
func New(startTime time.Time, log logger.StyledLogger) (*Application, error) {
	fs := pflag.NewFlagSet("loadforge", pflag.ContinueOnError)
	config.BindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg, err := config.Load(fs, nil)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Debug.DryRun {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	adapters := provider.NewRegistry()
	adapter, err := adapters.Get(cfg.Target.Provider)
	if err != nil {
		return nil, err
	}

	poolCfg := transport.DefaultPoolConfig()
	if cfg.Run.MaxWorkers > 0 {
		poolCfg.MaxConnectionsPerHost = cfg.Run.MaxWorkers
		poolCfg.MaxConnections = cfg.Run.MaxWorkers
	}
	poolCfg.DialTimeout = cfg.Target.Connect.ConnectTimeout

	pool := transport.NewPool(poolCfg, &tls.Config{MinVersion: tls.VersionTLS12})

	clientCfg := transport.DefaultClientConfig()
	clientCfg.ConnectTimeout = cfg.Target.Connect.ConnectTimeout
	clientCfg.ReadTimeout = cfg.Target.Connect.ReadTimeout
	clientCfg.Retry = transport.RetryConfig{
		MaxRetries: cfg.Target.Connect.MaxRetries,
		RetryDelay: cfg.Target.Connect.RetryDelay,
	}
	client := transport.NewClient(pool, clientCfg)

	limiter := ratelimit.New(cfg.Target.RateLimit.RequestsPerSecond, cfg.Target.RateLimit.RequestsPerMinute)

	var source ports.PromptSource
	if cfg.Dataset.Path != "" {
		source = dataset.NewLineByLine(dataset.LineByLineConfig{
			Path:        cfg.Dataset.Path,
			MaxExamples: cfg.Dataset.MaxExamples,
			SkipLines:   cfg.Dataset.SkipLines,
			LinePrefix:  cfg.Dataset.LinePrefix,
			Shuffle:     cfg.Dataset.Shuffle,
			Limit:       cfg.Dataset.Limit,
		})
	}

	executor := batch.NewExecutor(cfg.Run.Concurrent, 0)

	return &Application{
		cfg:       cfg,
		log:       log,
		pool:      pool,
		client:    client,
		limiter:   limiter,
		adapter:   adapter,
		source:    source,
		executor:  executor,
		progress:  progress.NewReporter(),
		writers:   report.NewRegistry(),
		startTime: startTime,
	}, nil
}

// Start runs the configured benchmark to completion (or, under --dry-run,
// prints the plan without sending anything) and persists its report.
func (a *Application) Start(ctx context.Context) error {
	if a.cfg.Debug.Debug {
		profiler.InitialiseProfiler()
		a.log.Info("Debug mode enabled", "pprof", "http://localhost:19841/debug/pprof/", "containerised", container.IsContainerised())
	}

	if a.cfg.Debug.DryRun {
		a.printPlan()
		return nil
	}

	a.log.Info("Starting benchmark",
		"target", a.cfg.Target.URL,
		"model", a.cfg.Target.Model,
		"provider", a.cfg.Target.Provider,
		"concurrent", a.cfg.Run.Concurrent,
		"number", a.cfg.Run.Number,
		"rounds", a.cfg.Run.Rounds,
	)

	sub, unsubscribe := a.progress.Subscribe(ctx)
	defer unsubscribe()
	if a.cfg.Debug.Verbose && util.IsTerminal() {
		go benchmark.RunProgressView(ctx, a.cfg.Run.Rounds, sub)
	} else {
		go a.watchProgress(sub)
	}

	orch := benchmark.New(benchmark.Config{
		Target:            a.cfg.Target.URL,
		Model:             a.cfg.Target.Model,
		Provider:          a.cfg.Target.Provider,
		WarmupIterations:  a.cfg.Run.WarmupIterations,
		TestIterations:    a.cfg.Run.Number,
		Rounds:            a.cfg.Run.Rounds,
		Concurrent:        a.cfg.Run.Concurrent,
		PerRequestTimeout: a.cfg.Target.Connect.ReadTimeout,
	}, a.executor, a.source, a.dispatch, a.progress, a.log)

	rep, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("running benchmark: %w", err)
	}
	a.lastRun = rep

	a.log.InfoWithTally("Benchmark complete",
		rep.Overall.Succeeded, rep.Overall.Failed+rep.Overall.TimedOut, rep.Overall.TimedOut,
		"requests_per_second", rep.Throughput,
		"tokens_per_second", rep.TokensPerS,
		"p95_ms", rep.Overall.Latency.P95.Milliseconds(),
		"p99_ms", rep.Overall.Latency.P99.Milliseconds(),
	)

	if a.cfg.Output.SaveResults {
		if err := a.persist(ctx, rep); err != nil {
			a.log.Error("Failed to write report", "error", err)
		}
	}

	if rep.Overall.Total == 0 {
		return errs.New(errs.KindData, fmt.Errorf("no evaluation produced any result"))
	}
	return nil
}

// Stop releases every resource Start acquired: the connection pool, the
// batch executor, and the progress event bus.
func (a *Application) Stop(ctx context.Context) error {
	a.executor.Close()
	a.pool.Shutdown()
	a.progress.Close()
	return nil
}

// LastReport returns the most recently completed run's report, or nil if
// Start has not yet produced one.
func (a *Application) LastReport() *domain.Report {
	return a.lastRun
}

func (a *Application) watchProgress(events <-chan domain.RoundSummary) {
	for summary := range events {
		a.log.InfoWithTally("Round complete",
			summary.Succeeded, summary.Failed+summary.TimedOut, summary.TimedOut,
			"round", summary.Round,
			"p95_ms", summary.Latency.P95.Milliseconds(),
		)
	}
}

func (a *Application) printPlan() {
	a.log.Info("Dry run: plan only, no requests will be sent",
		"target", a.cfg.Target.URL,
		"model", a.cfg.Target.Model,
		"provider", a.cfg.Target.Provider,
		"dataset", a.cfg.Dataset.Path,
		"concurrent", a.cfg.Run.Concurrent,
		"number", a.cfg.Run.Number,
		"rounds", a.cfg.Run.Rounds,
		"stream", a.cfg.Request.Stream,
	)
}

func (a *Application) persist(ctx context.Context, rep *domain.Report) error {
	writer, err := a.writers.Get(a.cfg.Output.Format)
	if err != nil {
		return err
	}
	path := a.outputPath(writer.Format())
	if err := writer.Write(ctx, path, rep); err != nil {
		return err
	}
	a.log.Info("Report written", "path", path, "format", writer.Format())
	return nil
}

func (a *Application) outputPath(format string) string {
	if a.cfg.Output.Path != "" {
		return a.cfg.Output.Path
	}
	name := a.cfg.Target.Model
	if name == "" {
		name = "report"
	}
	name = strings.NewReplacer("/", "_", ":", "_").Replace(name)
	return filepath.Join("results", "benchmark", name+"."+format)
}

// dispatch sends one prompt through the provider adapter and transport
// client, shaping the call as buffered or streaming per cfg.Request.Stream.
func (a *Application) dispatch(ctx context.Context, prompt string) (*domain.ChatResponse, time.Duration, error) {
	if !a.limiter.Unlimited() {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, 0, errs.New(errs.KindRateLimited, err)
		}
	}

	params := a.requestParams()
	body, err := a.adapter.EncodeRequest(prompt, params)
	if err != nil {
		return nil, 0, err
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	if a.cfg.Target.APIKey != "" {
		header.Set("Authorization", "Bearer "+a.cfg.Target.APIKey)
	}

	req := transport.Request{Method: "POST", URL: a.cfg.Target.URL, Header: header, Body: body}

	if params.Stream {
		return a.dispatchStreaming(ctx, req)
	}
	return a.dispatchBuffered(ctx, req)
}

func (a *Application) dispatchBuffered(ctx context.Context, req transport.Request) (*domain.ChatResponse, time.Duration, error) {
	resp, err := a.client.Execute(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	chatResp, err := a.adapter.DecodeResponse(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return chatResp, 0, nil
}

func (a *Application) dispatchStreaming(ctx context.Context, req transport.Request) (*domain.ChatResponse, time.Duration, error) {
	var content strings.Builder
	var usage *domain.Usage
	var finish string
	var ttfb time.Duration
	start := time.Now()
	first := true

	sink := func(chunk string) {
		if first {
			ttfb = time.Since(start)
			first = false
		}
		delta, u, done, derr := a.adapter.DecodeStreamEvent([]byte(chunk))
		if derr != nil {
			if a.cfg.Debug.Verbose {
				a.log.Debug("discarding malformed stream chunk", "error", derr)
			}
			return
		}
		content.WriteString(delta)
		if u != nil {
			usage = u
		}
		if done {
			finish = "stop"
		}
	}

	var streamErr error
	errSink := func(e error) { streamErr = e }

	if err := a.client.ExecuteStreaming(ctx, req, sink, errSink); err != nil {
		return nil, ttfb, err
	}
	if streamErr != nil {
		return nil, ttfb, streamErr
	}

	resp := &domain.ChatResponse{Content: content.String(), FinishReason: finish}
	if usage != nil {
		resp.Usage = *usage
	}
	return resp, ttfb, nil
}

func (a *Application) requestParams() ports.RequestParams {
	return ports.RequestParams{
		Model:            a.cfg.Target.Model,
		System:           a.cfg.Request.System,
		MaxTokens:        a.cfg.Request.MaxTokens,
		Temperature:      a.cfg.Request.Temperature,
		TopP:             a.cfg.Request.TopP,
		FrequencyPenalty: a.cfg.Request.FrequencyPenalty,
		PresencePenalty:  a.cfg.Request.PresencePenalty,
		Stop:             a.cfg.Request.Stop,
		Stream:           a.cfg.Request.Stream,
	}
}
