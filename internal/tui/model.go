// Package tui is the live dashboard shown while a run is in progress.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"quizload/internal/config"
	"quizload/internal/runner"
	"quizload/internal/stats"
	"quizload/internal/tui/live"
	"quizload/internal/tui/styles"
)

// EventMsg carries a runner event into the program.
type EventMsg struct {
	runner.Event
}

// DoneMsg is sent once the run has returned.
type DoneMsg struct {
	Results []stats.RunResult
}

type Model struct {
	Cfg      config.Config
	Live     live.Model
	Levels   progress.Model
	Finished []stats.RunResult

	Stopping bool
	Done     bool
	Width    int

	cancel context.CancelFunc
}

// NewModel builds the dashboard. cancel interrupts the run when the user
// quits before it is over.
func NewModel(cfg config.Config, cancel context.CancelFunc) Model {
	return Model{
		Cfg:    cfg,
		Live:   live.NewModel(cfg.ErrorRateThreshold * 100),
		Levels: progress.New(progress.WithDefaultGradient()),
		cancel: cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Levels.Width = max(msg.Width-4, 10)
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.Done {
				return m, tea.Quit
			}
			if !m.Stopping {
				m.Stopping = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case EventMsg:
		var cmds []tea.Cmd
		if f, ok := msg.Event.(runner.LevelFinished); ok {
			m.Finished = append(m.Finished, f.Result)
			if f.Total > 0 {
				cmds = append(cmds, m.Levels.SetPercent(float64(f.Index+1)/float64(f.Total)))
			}
		}
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg.Event)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case DoneMsg:
		m.Done = true
		m.Finished = msg.Results
		return m, tea.Quit

	case progress.FrameMsg:
		var cmds []tea.Cmd
		prog, cmd := m.Levels.Update(msg)
		m.Levels = prog.(progress.Model)
		cmds = append(cmds, cmd)
		m.Live, cmd = m.Live.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Header.Render("quizload"))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("%s  plan %d  stop at %.2f%% errors or %.0f ms",
		m.Cfg.BaseURL, m.Cfg.PlanID, m.Cfg.ErrorRateThreshold*100, m.Cfg.LatencyThresholdMs)))
	s.WriteString("\n\n")

	s.WriteString(m.Live.View())
	s.WriteString("\n\n")

	if len(m.Finished) > 0 {
		s.WriteString(styles.Title.Render("Completed levels"))
		s.WriteString("\n")
		for _, r := range m.Finished {
			reason := r.StopReason
			if reason == "" {
				reason = "completed"
			}
			s.WriteString(fmt.Sprintf("  %5d users  %8.1f req/s  %8.1f ms  %s  %s\n",
				r.Concurrency, r.Submit.Throughput, r.Submit.AvgMs,
				styles.ErrorRate(r.Submit.ErrorRate*100, m.Cfg.ErrorRateThreshold*100).
					Render(fmt.Sprintf("%6.2f%%", r.Submit.ErrorRate*100)),
				styles.Subtle.Render(reason)))
		}
		s.WriteString("\n")
	}

	if m.Live.Total > 1 {
		s.WriteString(m.Levels.View())
		s.WriteString("\n")
	}

	switch {
	case m.Done:
		s.WriteString(styles.RenderKey("q", "exit"))
	case m.Stopping:
		s.WriteString(styles.Warn.Render("stopping, waiting for in-flight requests..."))
	default:
		s.WriteString(styles.RenderKey("q", "stop run"))
	}
	s.WriteString("\n")

	return s.String()
}
