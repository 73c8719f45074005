// Package progress fans out benchmark round-completion events to whatever
// is watching a run live — the bubbletea progress view on an interactive
// terminal, or plain per-round log lines otherwise — without coupling the
// orchestrator (C6) to any particular presentation.
package progress

import (
	"context"

	"github.com/loadforge/loadforge/internal/core/domain"
	"github.com/loadforge/loadforge/pkg/eventbus"
)

// Reporter implements benchmark.Reporter over an eventbus.EventBus, so any
// number of subscribers (a live CLI view, a log sink, a future web UI) can
// observe the same stream of RoundSummary events.
type Reporter struct {
	bus *eventbus.EventBus[domain.RoundSummary]
}

// NewReporter builds a Reporter backed by a fresh event bus.
func NewReporter() *Reporter {
	return &Reporter{bus: eventbus.New[domain.RoundSummary]()}
}

// RoundComplete publishes summary to every current subscriber. Slow or
// absent subscribers never block the run: delivery is best-effort.
func (r *Reporter) RoundComplete(summary domain.RoundSummary) {
	r.bus.Publish(summary)
}

// Subscribe returns a channel of round-complete events and a cleanup
// function to detach it. Callers should range over the channel in their
// own goroutine and call cleanup when done watching.
func (r *Reporter) Subscribe(ctx context.Context) (<-chan domain.RoundSummary, func()) {
	return r.bus.Subscribe(ctx)
}

// Close shuts down the underlying event bus, detaching every subscriber.
func (r *Reporter) Close() {
	r.bus.Shutdown()
}
