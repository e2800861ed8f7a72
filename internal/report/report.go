// Package report turns the per-level results of a run into aggregate tables
// and a bottleneck analysis across levels.
package report

import (
	"sort"

	"quizload/internal/stats"
)

// Labels of the aggregate rows.
const (
	LabelSubmit = "submit"
	LabelStat   = "stat"
	LabelTotal  = "Total"
)

// Row is one line of the aggregate report. Latency figures are over
// successful requests only.
type Row struct {
	Concurrency int     `json:"concurrency"`
	Label       string  `json:"label"`
	Samples     uint64  `json:"samples"`
	AvgMs       float64 `json:"avg_ms"`
	MedianMs    float64 `json:"median_ms"`
	P90Ms       float64 `json:"p90_ms"`
	P95Ms       float64 `json:"p95_ms"`
	P99Ms       float64 `json:"p99_ms"`
	MinMs       float64 `json:"min_ms"`
	MaxMs       float64 `json:"max_ms"`
	StdDevMs    float64 `json:"std_dev_ms"`
	ErrorPct    float64 `json:"error_pct"`
	Throughput  float64 `json:"throughput"`
}

func streamRow(concurrency int, label string, s stats.StreamResult) Row {
	d := s.Summary()
	return Row{
		Concurrency: concurrency,
		Label:       label,
		Samples:     s.Samples,
		AvgMs:       s.AvgMs,
		MedianMs:    d.P50,
		P90Ms:       d.P90,
		P95Ms:       d.P95,
		P99Ms:       d.P99,
		MinMs:       s.MinMs,
		MaxMs:       s.MaxMs,
		StdDevMs:    d.StdDev,
		ErrorPct:    s.ErrorRate * 100,
		Throughput:  s.Throughput,
	}
}

// Aggregate builds the submit, stat and Total rows of one level.
func Aggregate(res stats.RunResult) []Row {
	submit := streamRow(res.Concurrency, LabelSubmit, res.Submit)
	stat := streamRow(res.Concurrency, LabelStat, res.Stat)

	d := combined(res.Submit, res.Stat)

	total := Row{
		Concurrency: res.Concurrency,
		Label:       LabelTotal,
		Samples:     submit.Samples + stat.Samples,
		AvgMs:       d.Mean,
		MedianMs:    d.P50,
		P90Ms:       d.P90,
		P95Ms:       d.P95,
		P99Ms:       d.P99,
		MinMs:       d.Min,
		MaxMs:       d.Max,
		StdDevMs:    d.StdDev,
		Throughput:  submit.Throughput + stat.Throughput,
	}
	if total.Samples > 0 {
		failures := res.Submit.Failure + res.Stat.Failure
		total.ErrorPct = float64(failures) / float64(total.Samples) * 100
	}
	return []Row{submit, stat, total}
}

// hasRaw reports whether every successful latency of s is still listed.
func hasRaw(s stats.StreamResult) bool {
	return s.Success == 0 || len(s.Latencies) > 0
}

// combined describes the latencies of both streams. Stored runs no longer
// carry the lists, so their percentiles and spread are the means of the
// stream figures weighted by successful samples.
func combined(a, b stats.StreamResult) stats.Summary {
	if hasRaw(a) && hasRaw(b) {
		all := make([]float64, 0, len(a.Latencies)+len(b.Latencies))
		all = append(all, a.Latencies...)
		all = append(all, b.Latencies...)
		return stats.Describe(all)
	}

	sa, sb := a.Summary(), b.Summary()
	switch {
	case sa.Count == 0:
		return sb
	case sb.Count == 0:
		return sa
	}
	wa := float64(sa.Count) / float64(sa.Count+sb.Count)
	wb := 1 - wa
	mix := func(x, y float64) float64 { return x*wa + y*wb }
	return stats.Summary{
		Count:  sa.Count + sb.Count,
		Mean:   mix(sa.Mean, sb.Mean),
		Min:    min(sa.Min, sb.Min),
		Max:    max(sa.Max, sb.Max),
		StdDev: mix(sa.StdDev, sb.StdDev),
		P50:    mix(sa.P50, sb.P50),
		P90:    mix(sa.P90, sb.P90),
		P95:    mix(sa.P95, sb.P95),
		P99:    mix(sa.P99, sb.P99),
	}
}

// AggregateAll concatenates the rows of every level, ordered by concurrency.
func AggregateAll(results []stats.RunResult) []Row {
	var rows []Row
	for _, r := range sorted(results) {
		rows = append(rows, Aggregate(r)...)
	}
	return rows
}

func sorted(results []stats.RunResult) []stats.RunResult {
	out := make([]stats.RunResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Concurrency < out[j].Concurrency })
	return out
}
