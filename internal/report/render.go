package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"quizload/internal/stats"
	"quizload/internal/tui/styles"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorBorder)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Active.Padding(0, 1)
			}
			return styles.Text.Padding(0, 1)
		})
}

func ms(v float64) string  { return strconv.FormatFloat(v, 'f', 1, 64) }
func pct(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + "%" }
func rate(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// RenderAggregate renders the aggregate rows.
func RenderAggregate(rows []Row) string {
	t := newTable("Users", "Label", "Samples", "Average", "Median", "90% Line", "95% Line", "99% Line",
		"Min", "Max", "Std Dev", "Error %", "Throughput")
	for _, r := range rows {
		t.Row(strconv.Itoa(r.Concurrency), r.Label, strconv.FormatUint(r.Samples, 10),
			ms(r.AvgMs), ms(r.MedianMs), ms(r.P90Ms), ms(r.P95Ms), ms(r.P99Ms),
			ms(r.MinMs), ms(r.MaxMs), ms(r.StdDevMs), pct(r.ErrorPct), rate(r.Throughput))
	}
	return t.Render()
}

// RenderLevels renders the cross-level table.
func RenderLevels(levels []Level) string {
	t := newTable("Users", "Submit req/s", "Submit avg", "Submit p99", "Error %", "Stat req/s", "Stat avg", "Stopped")
	for _, l := range levels {
		t.Row(strconv.Itoa(l.Concurrency), rate(l.SubmitTPS), ms(l.SubmitAvgMs), ms(l.SubmitP99Ms),
			pct(l.ErrorPct), rate(l.StatTPS), ms(l.StatAvgMs), l.StopReason)
	}
	return t.Render()
}

// RenderAnalysis renders the bottleneck analysis as text.
func RenderAnalysis(a Analysis) string {
	if len(a.Levels) == 0 {
		return styles.Subtle.Render("no results to analyze")
	}
	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", styles.Subtle.Render(fmt.Sprintf("%-22s", label)), value)
	}

	b.WriteString(styles.Title.Render("Submit bottlenecks") + "\n")
	line("throughput peak", styles.Value.Render(fmt.Sprintf("%d users, %.2f req/s", a.Peak.Concurrency, a.Peak.Value)))
	if a.Saturation.Found() {
		line("saturation", styles.Warn.Render(fmt.Sprintf("%d users, %.2f%% errors%s",
			a.Saturation.Concurrency, a.Saturation.Value, fallbackNote(a.Saturation))))
	}
	if a.UserImpact.Found() {
		line("user impact", styles.Warn.Render(fmt.Sprintf("%d users, %.1f ms avg%s",
			a.UserImpact.Concurrency, a.UserImpact.Value, fallbackNote(a.UserImpact))))
	}
	line("light load zone", zone(a.Zones.Light))
	line("heavy load zone", zone(a.Zones.Heavy))
	line("collapse zone", zone(a.Zones.Collapse))
	line("recommended users", styles.Success.Render(strconv.Itoa(a.Capacity.Recommended)))
	line("maximum users", strconv.Itoa(a.Capacity.Maximum))
	line("warning above", strconv.Itoa(a.Capacity.Warning))

	if len(a.HighFailure) > 0 {
		b.WriteString("\n" + styles.Title.Render(fmt.Sprintf("Levels above %.2f%% errors", a.ErrThreshold*100)) + "\n")
		for _, f := range a.HighFailure {
			fmt.Fprintf(&b, "  %s\n", styles.Error.Render(fmt.Sprintf("%d users: %.2f%%", f.Concurrency, f.ErrorPct)))
			for _, rc := range Reasons(f.Reasons) {
				fmt.Fprintf(&b, "    %6d  %s\n", rc.Count, rc.Reason)
			}
		}
	}

	b.WriteString("\n" + styles.Title.Render("Statistic bottlenecks") + "\n")
	line("throughput peak", styles.Value.Render(fmt.Sprintf("%d users, %.2f req/s", a.StatPeak.Concurrency, a.StatPeak.Value)))
	if a.StatLatency.Found() {
		line("latency spike", fmt.Sprintf("%d users, %.1f ms avg", a.StatLatency.Concurrency, a.StatLatency.Value))
	}
	return b.String()
}

func fallbackNote(p Point) string {
	if p.Crossed {
		return ""
	}
	return " (largest step)"
}

func zone(levels []int) string {
	switch len(levels) {
	case 0:
		return styles.Subtle.Render("none")
	case 1:
		return strconv.Itoa(levels[0])
	default:
		return fmt.Sprintf("%d - %d", levels[0], levels[len(levels)-1])
	}
}

// Render writes the aggregate report and, for more than one level, the
// cross-level table and analysis.
func Render(w io.Writer, results []stats.RunResult, step int, errThreshold float64) error {
	if _, err := fmt.Fprintln(w, RenderAggregate(AggregateAll(results))); err != nil {
		return err
	}
	if len(results) < 2 {
		return nil
	}
	a := Analyze(results, step, errThreshold)
	_, err := fmt.Fprintf(w, "\n%s\n\n%s\n", RenderLevels(a.Levels), RenderAnalysis(a))
	return err
}
