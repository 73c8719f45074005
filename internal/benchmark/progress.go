package benchmark

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loadforge/loadforge/internal/core/domain"
)

var (
	progressLabelStyle = lipgloss.NewStyle().Bold(true)
	progressStatStyle  = lipgloss.NewStyle().Faint(true)
)

// roundMsg carries one completed round's summary into the bubbletea loop.
type roundMsg domain.RoundSummary

// quitMsg tells the program its context was cancelled.
type quitMsg struct{}

type progressModel struct {
	bar         progress.Model
	totalRounds int
	roundsDone  int
	last        domain.RoundSummary
}

func newProgressModel(totalRounds int) progressModel {
	return progressModel{
		bar:         progress.New(progress.WithDefaultGradient()),
		totalRounds: totalRounds,
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		return m, nil

	case roundMsg:
		m.last = domain.RoundSummary(msg)
		m.roundsDone++
		if m.totalRounds <= 0 {
			return m, nil
		}
		cmd := m.bar.SetPercent(float64(m.roundsDone) / float64(m.totalRounds))
		return m, cmd

	case quitMsg:
		return m, tea.Quit

	case progress.FrameMsg:
		newModel, cmd := m.bar.Update(msg)
		m.bar = newModel.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.roundsDone == 0 {
		return progressLabelStyle.Render("warming up") + "\n"
	}

	stats := progressStatStyle.Render(fmt.Sprintf(
		"round %d/%d  ok=%d failed=%d timeout=%d  p95=%s",
		m.roundsDone, m.totalRounds,
		m.last.Succeeded, m.last.Failed, m.last.TimedOut,
		m.last.Latency.P95.Round(time.Millisecond),
	))

	return progressLabelStyle.Render("loadforge") + "  " + m.bar.View() + "\n" + stats + "\n"
}

// RunProgressView drives a small bubbletea program that renders a live bar
// as rounds complete, forwarding summaries from events until ctx is done or
// the subscription closes. Any error from the bubbletea program is
// discarded and there is no fallback rendering here; internal/app writes
// plain per-round log lines instead when not on an interactive terminal,
// so callers should only invoke this when running interactively.
func RunProgressView(ctx context.Context, totalRounds int, events <-chan domain.RoundSummary) {
	p := tea.NewProgram(newProgressModel(totalRounds))

	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Send(quitMsg{})
				return
			case summary, ok := <-events:
				if !ok {
					p.Send(quitMsg{})
					return
				}
				p.Send(roundMsg(summary))
			}
		}
	}()

	_, _ = p.Run()
}
