package stats

import (
	"time"
)

// StreamResult is the finalized view of one stream for one concurrency level.
type StreamResult struct {
	Samples        uint64            `json:"samples"`
	Success        uint64            `json:"success"`
	Failure        uint64            `json:"failure"`
	Throughput     float64           `json:"throughput"`
	AvgMs          float64           `json:"avg_ms"`
	MinMs          float64           `json:"min_ms"`
	MaxMs          float64           `json:"max_ms"`
	MedianMs       float64           `json:"median_ms"`
	P90Ms          float64           `json:"p90_ms"`
	P95Ms          float64           `json:"p95_ms"`
	P99Ms          float64           `json:"p99_ms"`
	StdDevMs       float64           `json:"std_dev_ms"`
	ErrorRate      float64           `json:"error_rate"`
	FailureReasons map[string]uint64 `json:"failure_reasons,omitempty"`

	// Dropped before a run is stored; the figures above survive.
	Latencies []float64 `json:"latencies,omitempty"`
}

// RunResult is the immutable outcome of one concurrency level.
type RunResult struct {
	Concurrency int           `json:"concurrency"`
	Elapsed     time.Duration `json:"elapsed"`
	StopReason  string        `json:"stop_reason,omitempty"`
	Submit      StreamResult  `json:"submit"`
	Stat        StreamResult  `json:"stat"`
}

// Stream returns the result for kind.
func (r RunResult) Stream(kind Kind) StreamResult {
	if kind == Stat {
		return r.Stat
	}
	return r.Submit
}

// ErrorRate is the submit error rate, the figure thresholds apply to.
func (r RunResult) ErrorRate() float64 { return r.Submit.ErrorRate }

// Summary describes the successful latencies, from the raw list when it is
// kept and from the finalized figures otherwise.
func (s StreamResult) Summary() Summary {
	if len(s.Latencies) > 0 {
		return Describe(s.Latencies)
	}
	return Summary{
		Count:  int(s.Success),
		Mean:   s.AvgMs,
		Min:    s.MinMs,
		Max:    s.MaxMs,
		StdDev: s.StdDevMs,
		P50:    s.MedianMs,
		P90:    s.P90Ms,
		P95:    s.P95Ms,
		P99:    s.P99Ms,
	}
}

// WithoutLatencies drops the raw latency lists, e.g. before persisting.
func (r RunResult) WithoutLatencies() RunResult {
	r.Submit.Latencies = nil
	r.Stat.Latencies = nil
	return r
}

// NewStreamResult finalizes a snapshot over the elapsed wall-clock time.
func NewStreamResult(s StreamSnapshot, elapsed time.Duration) StreamResult {
	res := StreamResult{
		Samples:        s.Samples(),
		Success:        s.Success,
		Failure:        s.Failure,
		ErrorRate:      s.ErrorRate(),
		FailureReasons: s.FailureReasons,
		Latencies:      s.Latencies,
	}
	if sec := elapsed.Seconds(); sec > 0 {
		res.Throughput = float64(res.Samples) / sec
	}
	if len(s.Latencies) > 0 {
		d := Describe(s.Latencies)
		res.AvgMs = d.Mean
		res.MinMs = d.Min
		res.MaxMs = d.Max
		res.MedianMs = d.P50
		res.P90Ms = d.P90
		res.P95Ms = d.P95
		res.P99Ms = d.P99
		res.StdDevMs = d.StdDev
	}
	return res
}

// NewRunResult snapshots both streams of m.
func NewRunResult(concurrency int, elapsed time.Duration, reason string, m *Metrics) RunResult {
	return RunResult{
		Concurrency: concurrency,
		Elapsed:     elapsed,
		StopReason:  reason,
		Submit:      NewStreamResult(m.Snapshot(Submit), elapsed),
		Stat:        NewStreamResult(m.Snapshot(Stat), elapsed),
	}
}
