package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

var maxTrackableUs = int64(10 * time.Minute / time.Microsecond)

// latencyHistogram keeps a compact HDR view of successful latencies so the
// live dashboard can read a cumulative p99 without sorting the full list.
// It is not safe for concurrent use; Metrics guards it with its own lock.
type latencyHistogram struct {
	hist *hdrhistogram.Histogram
}

func newLatencyHistogram() *latencyHistogram {
	// 1us to 10min, 3 significant figures
	return &latencyHistogram{hist: hdrhistogram.New(1, maxTrackableUs, 3)}
}

// recordMs records a latency given in milliseconds. Values outside the
// trackable range are clamped.
func (h *latencyHistogram) recordMs(ms float64) {
	us := int64(ms * 1000)
	if us < 1 {
		us = 1
	}
	if us > maxTrackableUs {
		us = maxTrackableUs
	}
	_ = h.hist.RecordValue(us)
}

func (h *latencyHistogram) quantileMs(q float64) float64 {
	if h.hist.TotalCount() == 0 {
		return 0
	}
	return float64(h.hist.ValueAtQuantile(q)) / 1000.0
}
