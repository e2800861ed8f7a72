// Package cli wires configuration, the runner and the outputs together for
// headless and dashboard runs.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"quizload/internal/config"
	"quizload/internal/issuer"
	"quizload/internal/logging"
	"quizload/internal/monitoring"
	"quizload/internal/report"
	"quizload/internal/runner"
	"quizload/internal/stats"
	"quizload/internal/storage"
	"quizload/internal/tui"
)

const rule = "======================================================================"

// Options overrides the defaults of a run. Zero values mean stdout, a
// logger at the configured level and the HTTP transport.
type Options struct {
	Out       io.Writer
	Log       *logrus.Logger
	Transport issuer.Transport
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

func (o Options) transport(cfg config.Config) issuer.Transport {
	if o.Transport != nil {
		return o.Transport
	}
	return issuer.NewHTTPTransport(cfg.RequestTimeout(), cfg.ConcurrencyLevel+cfg.MaxConcurrency)
}

// newRunner builds the runner and, when configured, starts the metrics
// endpoint for the lifetime of ctx.
func newRunner(ctx context.Context, cfg config.Config, opts Options, log logrus.FieldLogger, sinks ...runner.Sink) *runner.Runner {
	var runOpts []runner.Option
	if cfg.MetricsAddr != "" {
		c := monitoring.NewCollector()
		runOpts = append(runOpts, runner.WithObservers(c))
		sinks = append(sinks, c)
		go func() {
			if err := c.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}
	runOpts = append(runOpts, runner.WithSinks(sinks...))
	return runner.New(cfg, opts.transport(cfg), log, runOpts...)
}

// Start runs headless: progress goes to the log, the report to Out.
func Start(ctx context.Context, cfg config.Config, opts Options) ([]stats.RunResult, error) {
	w := opts.out()
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	printHeader(w, cfg)

	levelLine := runner.SinkFunc(func(e runner.Event) {
		if ev, ok := e.(runner.LevelStarted); ok {
			fmt.Fprintf(w, "\n--- level %d/%d: %d users ---\n", ev.Index+1, ev.Total, ev.Concurrency)
		}
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	r := newRunner(runCtx, cfg, opts, log, levelLine)
	results := r.Run(runCtx)

	printSummary(w, results, time.Since(start))
	return results, Finish(w, cfg, results)
}

// StartTUI runs with the live dashboard. Logging is discarded while the
// dashboard owns the terminal.
func StartTUI(ctx context.Context, cfg config.Config, opts Options) ([]stats.RunResult, error) {
	log := logging.Discard()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.NewModel(cfg, cancel), tea.WithAltScreen(), tea.WithContext(ctx))
	sink := tui.NewSink(p.Send)
	r := newRunner(runCtx, cfg, opts, log, sink)

	done := make(chan []stats.RunResult, 1)
	go func() {
		results := r.Run(runCtx)
		sink.Close()
		p.Send(tui.DoneMsg{Results: results})
		done <- results
	}()

	_, err := p.Run()
	// the dashboard may end early on its own error; the run still drains
	cancel()
	results := <-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return results, fmt.Errorf("dashboard: %w", err)
	}

	w := opts.out()
	printSummary(w, results, elapsed(results))
	return results, Finish(w, cfg, results)
}

// Finish renders the report and writes the exports and the history record.
func Finish(w io.Writer, cfg config.Config, results []stats.RunResult) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "no level completed, nothing to report")
		return nil
	}

	if err := report.Render(w, results, cfg.ConcurrencyStep, cfg.ErrorRateThreshold); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if cfg.OutPrefix != "" {
		paths, err := report.Export(cfg.OutPrefix, results, cfg.ConcurrencyStep, cfg.ErrorRateThreshold)
		if err != nil {
			return fmt.Errorf("export report: %w", err)
		}
		fmt.Fprintf(w, "\nReports saved: %s\n", strings.Join(paths, ", "))
	}

	if cfg.HistoryPath != "" {
		id, err := saveHistory(cfg, results)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Run saved to history as %s\n", id)
	}
	return nil
}

func saveHistory(cfg config.Config, results []stats.RunResult) (string, error) {
	store, err := storage.Open(cfg.HistoryPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	rec, err := storage.NewRecord(cfg, results)
	if err != nil {
		return "", err
	}
	if err := store.Save(rec); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return rec.ID, nil
}

func printHeader(w io.Writer, cfg config.Config) {
	levels := cfg.Levels()
	fmt.Fprintf(w, "\nSTARTING QUIZLOAD RUN\n")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Service    : %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "Submit     : POST %s (%d answers per task)\n", cfg.SubmitPath, len(cfg.AnswerSequence))
	fmt.Fprintf(w, "Statistic  : GET %s (%d/s per question)\n", cfg.StatPath, cfg.StatQueriesPerSecondPerTarget)
	fmt.Fprintf(w, "Plan       : %d, %d students\n", cfg.PlanID, cfg.StudentCount)
	if len(levels) > 1 {
		fmt.Fprintf(w, "Users      : %d to %d, step %d\n", levels[0], levels[len(levels)-1], cfg.ConcurrencyStep)
	} else {
		fmt.Fprintf(w, "Users      : %d\n", levels[0])
	}
	if d := cfg.LevelDuration(); d > 0 {
		fmt.Fprintf(w, "Per level  : %s\n", d)
	} else {
		fmt.Fprintf(w, "Per level  : until a threshold is breached\n")
	}
	fmt.Fprintf(w, "Stop at    : %.2f%% errors or %.0f ms average\n", cfg.ErrorRateThreshold*100, cfg.LatencyThresholdMs)
	fmt.Fprintf(w, "Timeout    : %s\n", cfg.RequestTimeout())
	fmt.Fprintln(w, rule)
}

func printSummary(w io.Writer, results []stats.RunResult, total time.Duration) {
	fmt.Fprintf(w, "\nRUN RESULTS\n")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total Duration : %s\n", total.Round(time.Second))
	fmt.Fprintf(w, "Levels Tested  : %d\n", len(results))
	if n := len(results); n > 0 {
		last := results[n-1]
		reason := last.StopReason
		if reason == "" {
			reason = "completed"
		}
		fmt.Fprintf(w, "Last Level     : %d users (%s)\n", last.Concurrency, reason)
	}

	for _, r := range results {
		for _, kind := range stats.Kinds {
			s := r.Stream(kind)
			if s.Failure == 0 {
				continue
			}
			fmt.Fprintf(w, "\nFAILURES at %d users, %s\n", r.Concurrency, kind)
			for _, rc := range report.Reasons(s.FailureReasons) {
				fmt.Fprintf(w, "   %d x %s\n", rc.Count, rc.Reason)
			}
		}
	}
	fmt.Fprintln(w, rule)
}

func elapsed(results []stats.RunResult) time.Duration {
	var d time.Duration
	for _, r := range results {
		d += r.Elapsed
	}
	return d
}
