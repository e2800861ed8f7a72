package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"quizload/internal/stats"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// ExportCSV writes the aggregate report, one row per level and label.
func ExportCSV(rows []Row, filename string) error {
	header := []string{
		"Concurrent Users", "Label", "Samples", "Average(ms)", "Median(ms)", "90% Line(ms)",
		"95% Line(ms)", "99% Line(ms)", "Min(ms)", "Max(ms)", "Std Dev(ms)", "Error%", "Throughput(req/s)",
	}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			strconv.Itoa(r.Concurrency), r.Label, strconv.FormatUint(r.Samples, 10),
			f2(r.AvgMs), f2(r.MedianMs), f2(r.P90Ms), f2(r.P95Ms), f2(r.P99Ms),
			f2(r.MinMs), f2(r.MaxMs), f2(r.StdDevMs), f2(r.ErrorPct), f2(r.Throughput),
		})
	}
	return writeCSV(filename, header, records)
}

// ExportSummaryCSV writes the cross-level table.
func ExportSummaryCSV(levels []Level, filename string) error {
	header := []string{
		"Concurrent Users", "Submit Throughput(req/s)", "Submit Average(ms)", "Submit 99% Line(ms)",
		"Submit Error%", "Stat Throughput(req/s)", "Stat Average(ms)", "Stat Error%", "Stop Reason",
	}
	records := make([][]string, 0, len(levels))
	for _, l := range levels {
		records = append(records, []string{
			strconv.Itoa(l.Concurrency), f2(l.SubmitTPS), f2(l.SubmitAvgMs), f2(l.SubmitP99Ms),
			f2(l.ErrorPct), f2(l.StatTPS), f2(l.StatAvgMs), f2(l.StatErrorPct), l.StopReason,
		})
	}
	return writeCSV(filename, header, records)
}

func writeCSV(filename string, header []string, records [][]string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return f.Close()
}

// Document is the JSON export of a run.
type Document struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Results     []stats.RunResult `json:"results"`
	Aggregate   []Row             `json:"aggregate"`
	Analysis    *Analysis         `json:"analysis,omitempty"`
}

// ExportJSON writes results, aggregate rows and, for sweeps, the analysis.
// Raw latency lists are left out.
func ExportJSON(results []stats.RunResult, step int, errThreshold float64, filename string) error {
	doc := Document{
		GeneratedAt: time.Now(),
		Aggregate:   AggregateAll(results),
	}
	for _, r := range results {
		doc.Results = append(doc.Results, r.WithoutLatencies())
	}
	if len(results) > 1 {
		a := Analyze(results, step, errThreshold)
		doc.Analysis = &a
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(filename, data, 0644)
}

// Export writes <prefix>_aggregate.csv, <prefix>_summary.csv and
// <prefix>.json and returns the paths written.
func Export(prefix string, results []stats.RunResult, step int, errThreshold float64) ([]string, error) {
	aggregate := prefix + "_aggregate.csv"
	summary := prefix + "_summary.csv"
	doc := prefix + ".json"

	if err := ExportCSV(AggregateAll(results), aggregate); err != nil {
		return nil, err
	}
	if err := ExportSummaryCSV(Analyze(results, step, errThreshold).Levels, summary); err != nil {
		return nil, err
	}
	if err := ExportJSON(results, step, errThreshold, doc); err != nil {
		return nil, err
	}
	return []string{aggregate, summary, doc}, nil
}
