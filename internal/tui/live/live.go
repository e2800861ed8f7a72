// Package live renders the figures of the level currently under test.
package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quizload/internal/runner"
	"quizload/internal/tui/components"
	"quizload/internal/tui/styles"
)

type Model struct {
	Concurrency int
	Index       int
	Total       int
	Duration    time.Duration
	Last        runner.Tick
	Progress    progress.Model

	SubmitTPS     components.Sparkline
	SubmitLatency components.Sparkline
	StatTPS       components.Sparkline

	// ErrThresholdPct colours the error figures.
	ErrThresholdPct float64

	Width int
}

func NewModel(errThresholdPct float64) Model {
	return Model{
		Progress:        progress.New(progress.WithDefaultGradient()),
		SubmitTPS:       components.NewSparkline(40, "submit", "req/s", styles.Active),
		SubmitLatency:   components.NewSparkline(40, "submit avg", "ms", styles.Warn),
		StatTPS:         components.NewSparkline(40, "stat", "req/s", styles.Value),
		ErrThresholdPct: errThresholdPct,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.LevelStarted:
		m.Concurrency = msg.Concurrency
		m.Index = msg.Index
		m.Total = msg.Total
		m.Duration = msg.Duration
		m.Last = runner.Tick{Concurrency: msg.Concurrency}
		m.SubmitTPS.Reset()
		m.SubmitLatency.Reset()
		m.StatTPS.Reset()
		return m, m.Progress.SetPercent(0)

	case runner.Tick:
		m.Last = msg
		m.SubmitTPS.Add(msg.Submit.Throughput)
		m.SubmitLatency.Add(msg.Submit.AvgLatencyMs)
		m.StatTPS.Add(msg.Stat.Throughput)

		if m.Duration > 0 {
			pct := min(float64(msg.Elapsed)/float64(m.Duration), 1.0)
			return m, m.Progress.SetPercent(pct)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Progress.Width = max(msg.Width-4, 10)

		third := max(msg.Width/3-6, 10)
		m.SubmitTPS.Width = third
		m.SubmitLatency.Width = third
		m.StatTPS.Width = third
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) streamBox(title string, st runner.StreamTick) string {
	errStyle := styles.ErrorRate(st.ErrorRate, m.ErrThresholdPct)
	body := fmt.Sprintf("%s\nreq/s  %8.1f\navg    %8.1f ms\np99    %8.1f ms\nerr    %s\ntotal  %8d",
		styles.Title.Render(title),
		st.Throughput, st.AvgLatencyMs, st.P99Ms,
		errStyle.Render(fmt.Sprintf("%7.2f%%", st.ErrorRate)),
		st.TotalSamples,
	)
	return styles.Box.Render(body)
}

func (m Model) View() string {
	s := strings.Builder{}

	head := fmt.Sprintf("Level %d/%d  %s users  %s in flight  %s",
		m.Index+1, m.Total,
		styles.Value.Render(fmt.Sprint(m.Concurrency)),
		styles.Active.Render(fmt.Sprint(m.Last.InFlight)),
		styles.Subtle.Render(m.Last.Elapsed.Round(time.Second).String()),
	)
	s.WriteString(head)
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.streamBox("Submit", m.Last.Submit),
		m.streamBox("Statistic", m.Last.Stat),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.SubmitTPS.View()),
		styles.Box.Render(m.SubmitLatency.View()),
		styles.Box.Render(m.StatTPS.View()),
	))
	s.WriteString("\n\n")

	if m.Duration > 0 {
		s.WriteString(m.Progress.View())
	} else {
		s.WriteString(styles.Subtle.Render("running until a threshold is breached"))
	}

	return s.String()
}
