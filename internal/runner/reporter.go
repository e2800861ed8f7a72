package runner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"quizload/internal/stats"
)

// Reporter samples the metrics once per interval and reports what happened
// since the previous sample.
type Reporter struct {
	Interval time.Duration

	concurrency int
	metrics     *stats.Metrics
	signal      *StopSignal
	inflight    func() int64
	sinks       []Sink
	log         logrus.FieldLogger

	start   time.Time
	cursors [2]stats.Cursor
}

func NewReporter(concurrency int, m *stats.Metrics, sig *StopSignal, inflight func() int64,
	log logrus.FieldLogger, sinks ...Sink) *Reporter {
	return &Reporter{
		Interval:    time.Second,
		concurrency: concurrency,
		metrics:     m,
		signal:      sig,
		inflight:    inflight,
		sinks:       sinks,
		log:         log,
		start:       time.Now(),
	}
}

// Run ticks until ctx ends or the stop signal is raised.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.signal.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil || r.signal.Stopped() {
				return
			}
			r.emit(r.Sample())
		}
	}
}

// Sample reads the delta since the previous call and advances the cursors.
func (r *Reporter) Sample() Tick {
	t := Tick{
		Concurrency: r.concurrency,
		Elapsed:     time.Since(r.start),
		Submit:      r.sampleStream(stats.Submit),
		Stat:        r.sampleStream(stats.Stat),
	}
	if r.inflight != nil {
		t.InFlight = r.inflight()
	}
	return t
}

func (r *Reporter) sampleStream(kind stats.Kind) StreamTick {
	w, next := r.metrics.Since(kind, r.cursors[kind])
	r.cursors[kind] = next
	cum := r.metrics.Cumulative(kind)

	st := StreamTick{
		Kind:         kind,
		Samples:      w.Samples,
		Failures:     w.Failures,
		TotalSamples: next.Samples,
		P99Ms:        cum.P99Ms,
	}
	if sec := r.Interval.Seconds(); sec > 0 {
		st.Throughput = float64(w.Samples) / sec
	}
	if n := len(w.Latencies); n > 0 {
		var sum float64
		for _, l := range w.Latencies {
			sum += l
		}
		st.AvgLatencyMs = sum / float64(n)
	}
	if w.Samples > 0 {
		st.ErrorRate = float64(w.Failures) / float64(w.Samples) * 100
	}
	return st
}

func (r *Reporter) emit(t Tick) {
	r.log.WithFields(logrus.Fields{
		"concurrency": t.Concurrency,
		"inflight":    t.InFlight,
	}).Infof("t=%5.1fs | submit %6.1f req/s %7.1f ms %5.2f%% err | stat %6.1f req/s %7.1f ms %5.2f%% err",
		t.Elapsed.Seconds(),
		t.Submit.Throughput, t.Submit.AvgLatencyMs, t.Submit.ErrorRate,
		t.Stat.Throughput, t.Stat.AvgLatencyMs, t.Stat.ErrorRate,
	)
	for _, s := range r.sinks {
		s.Publish(t)
	}
}
