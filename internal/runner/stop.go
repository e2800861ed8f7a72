package runner

import (
	"fmt"

	"quizload/internal/stats"
)

const (
	ReasonErrorRate   = "error rate exceeded"
	ReasonLatency     = "latency exceeded"
	ReasonDuration    = "duration elapsed"
	ReasonInterrupted = "interrupted"
)

// Thresholds are the run-level halt conditions over cumulative submit
// metrics. Both comparisons are strict.
type Thresholds struct {
	ErrorRate float64
	LatencyMs float64
}

// Verdict is the result of one evaluation.
type Verdict struct {
	Stop   bool
	Reason string
	Detail string
}

// Evaluate checks both conditions. The error rate is checked first and
// wins when both hold.
func (t Thresholds) Evaluate(c stats.Cumulative) Verdict {
	if c.Samples() > 0 && c.ErrorRate() > t.ErrorRate {
		return Verdict{
			Stop:   true,
			Reason: ReasonErrorRate,
			Detail: fmt.Sprintf("error rate %.2f%% above %.2f%%", c.ErrorRate()*100, t.ErrorRate*100),
		}
	}
	if c.LatencyCount > 0 && c.MeanLatencyMs > t.LatencyMs {
		return Verdict{
			Stop:   true,
			Reason: ReasonLatency,
			Detail: fmt.Sprintf("average latency %.2f ms above %.0f ms", c.MeanLatencyMs, t.LatencyMs),
		}
	}
	return Verdict{}
}
