// Package batch runs one round's worth of independent chat-completion
// requests under a bounded concurrency cap, tracking in-flight work in a
// lock-free outstanding-request table and enforcing per-request and
// whole-batch deadlines.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/loadforge/loadforge/internal/core/domain"
	"github.com/loadforge/loadforge/internal/core/errs"
)

// Task is one request the executor should dispatch. Run is handed a
// context carrying the task's per-request deadline (if any) and the
// batch's cancellation; it should invalidate/cancel promptly on ctx.Done.
type Task struct {
	RequestID string
	Critical  bool
	Deadline  time.Duration
	Run       func(ctx context.Context) (resp *domain.ChatResponse, ttfb time.Duration, err error)
}

// Outcome is the result of one Run call: every task's RequestResult, in
// input order, plus whether the batch ran to completion.
type Outcome struct {
	Results           []domain.RequestResult
	Completed         bool
	TerminationReason string
}

// Executor bounds concurrency across the requests of one batch.
type Executor struct {
	maxConcurrent int
	batchDeadline time.Duration

	outstanding *xsync.Map[string, time.Time]

	closed atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewExecutor builds an Executor admitting at most maxConcurrent
// simultaneous in-flight requests, with an optional whole-batch deadline
// (0 disables it).
func NewExecutor(maxConcurrent int, batchDeadline time.Duration) *Executor {
	return &Executor{
		maxConcurrent: maxConcurrent,
		batchDeadline: batchDeadline,
		outstanding:   xsync.NewMap[string, time.Time](),
	}
}

// Outstanding reports how many requests are currently in flight.
func (e *Executor) Outstanding() int {
	return e.outstanding.Size()
}

// Run dispatches tasks (in input order, up to maxConcurrent at once) and
// blocks until every task has either completed, been cancelled by a
// deadline, or been skipped after a critical failure.
func (e *Executor) Run(ctx context.Context, batchID string, tasks []Task) (*Outcome, error) {
	if e.closed.Load() {
		return nil, fmt.Errorf("batch executor is closed")
	}
	if len(tasks) == 0 {
		return &Outcome{Completed: true}, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	var deadlineFired atomic.Bool
	if e.batchDeadline > 0 {
		timer := time.AfterFunc(e.batchDeadline, func() {
			deadlineFired.Store(true)
			cancel()
		})
		defer timer.Stop()
	}

	results := make([]domain.RequestResult, len(tasks))
	var criticalFailed atomic.Bool

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(e.maxConcurrent)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			if criticalFailed.Load() || gctx.Err() != nil {
				results[i] = e.skippedResult(batchID, i, task)
				return nil
			}
			results[i] = e.dispatch(gctx, batchID, i, task, &criticalFailed, cancel)
			return nil
		})
	}
	_ = g.Wait()

	completed := true
	reason := ""
	switch {
	case criticalFailed.Load():
		completed = false
		reason = "Critical request failed"
	case deadlineFired.Load():
		completed = false
		reason = "batch timeout"
	}

	return &Outcome{Results: results, Completed: completed, TerminationReason: reason}, nil
}

func (e *Executor) dispatch(ctx context.Context, batchID string, index int, task Task, criticalFailed *atomic.Bool, cancelBatch context.CancelFunc) domain.RequestResult {
	reqCtx := ctx
	if task.Deadline > 0 {
		var taskCancel context.CancelFunc
		reqCtx, taskCancel = context.WithTimeout(ctx, task.Deadline)
		defer taskCancel()
	}

	start := time.Now()
	e.outstanding.Store(task.RequestID, start)
	defer e.outstanding.Delete(task.RequestID)

	resp, ttfb, err := task.Run(reqCtx)
	completed := time.Now()

	result := domain.RequestResult{
		RequestID:   task.RequestID,
		BatchID:     batchID,
		Index:       index,
		StartedAt:   start,
		CompletedAt: completed,
		TTFB:        ttfb,
		Latency:     completed.Sub(start),
	}

	if err == nil {
		result.Outcome = domain.OutcomeSuccess
		result.Response = resp
		return result
	}

	result.Outcome, result.Err = classify(err)
	if task.Critical {
		criticalFailed.Store(true)
		cancelBatch()
	}
	return result
}

// skippedResult fills in a placeholder for a task that never dispatched
// because the batch was already cancelled (critical failure or deadline).
func (e *Executor) skippedResult(batchID string, index int, task Task) domain.RequestResult {
	now := time.Now()
	return domain.RequestResult{
		RequestID:   task.RequestID,
		BatchID:     batchID,
		Index:       index,
		StartedAt:   now,
		CompletedAt: now,
		Outcome:     domain.OutcomeCancelled,
		Err:         errs.New(errs.KindCancelled, fmt.Errorf("skipped: batch already terminating")),
	}
}

// classify maps a task error onto the outcome kinds C6/C8 aggregate over.
func classify(err error) (domain.Outcome, *errs.Error) {
	var ae *errs.Error
	if !errors.As(err, &ae) {
		ae = errs.New(errs.KindTransport, err)
	}

	switch ae.Kind {
	case errs.KindTimeout:
		return domain.OutcomeTimeout, ae
	case errs.KindCancelled:
		return domain.OutcomeCancelled, ae
	case errs.KindRateLimited:
		return domain.OutcomeRateLimited, ae
	default:
		return domain.OutcomeFailure, ae
	}
}

// Close stops accepting new Run calls and cancels any batch currently in
// flight. Safe to call multiple times.
func (e *Executor) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()
}
