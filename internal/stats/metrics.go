package stats

import (
	"sync"
)

// Kind selects one of the two metric streams.
type Kind int

const (
	Submit Kind = iota
	Stat
)

// Kinds lists every stream in report order.
var Kinds = []Kind{Submit, Stat}

func (k Kind) String() string {
	switch k {
	case Submit:
		return "submit"
	case Stat:
		return "stat"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one remote call.
type Outcome struct {
	Success       bool
	LatencyMs     float64
	FailureReason string
}

// Observer is notified of every recorded outcome, outside the metrics lock.
type Observer interface {
	Observe(kind Kind, o Outcome)
}

type stream struct {
	success    uint64
	failure    uint64
	latencies  []float64
	latencySum float64
	reasons    map[string]uint64
	hist       *latencyHistogram
}

func newStream() *stream {
	return &stream{
		latencies: make([]float64, 0, 1024),
		reasons:   make(map[string]uint64),
		hist:      newLatencyHistogram(),
	}
}

// Metrics accumulates both streams under a single lock so that counters and
// latency lists are always read consistently.
type Metrics struct {
	mu        sync.Mutex
	streams   [2]*stream
	observers []Observer
}

func NewMetrics(observers ...Observer) *Metrics {
	return &Metrics{
		streams:   [2]*stream{newStream(), newStream()},
		observers: observers,
	}
}

// Record folds one outcome into the stream. Successes append their latency,
// failures bump the failure counter and one reason bucket.
func (m *Metrics) Record(kind Kind, o Outcome) {
	m.mu.Lock()
	s := m.streams[kind]
	if o.Success {
		s.success++
		s.latencies = append(s.latencies, o.LatencyMs)
		s.latencySum += o.LatencyMs
		s.hist.recordMs(o.LatencyMs)
	} else {
		s.failure++
		s.reasons[o.FailureReason]++
	}
	m.mu.Unlock()

	for _, obs := range m.observers {
		obs.Observe(kind, o)
	}
}

// StreamSnapshot is a deep copy of one stream.
type StreamSnapshot struct {
	Kind           Kind
	Success        uint64
	Failure        uint64
	Latencies      []float64
	FailureReasons map[string]uint64
}

func (s StreamSnapshot) Samples() uint64 { return s.Success + s.Failure }

// ErrorRate is failures over samples, as a fraction.
func (s StreamSnapshot) ErrorRate() float64 {
	if s.Samples() == 0 {
		return 0
	}
	return float64(s.Failure) / float64(s.Samples())
}

func (m *Metrics) Snapshot(kind Kind) StreamSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.streams[kind]
	lat := make([]float64, len(s.latencies))
	copy(lat, s.latencies)
	reasons := make(map[string]uint64, len(s.reasons))
	for k, v := range s.reasons {
		reasons[k] = v
	}
	return StreamSnapshot{
		Kind:           kind,
		Success:        s.success,
		Failure:        s.failure,
		Latencies:      lat,
		FailureReasons: reasons,
	}
}

// Cumulative holds the O(1) running figures of a stream.
type Cumulative struct {
	Success       uint64
	Failure       uint64
	MeanLatencyMs float64
	LatencyCount  int
	P99Ms         float64
}

func (c Cumulative) Samples() uint64 { return c.Success + c.Failure }

func (c Cumulative) ErrorRate() float64 {
	if c.Samples() == 0 {
		return 0
	}
	return float64(c.Failure) / float64(c.Samples())
}

func (m *Metrics) Cumulative(kind Kind) Cumulative {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.streams[kind]
	c := Cumulative{
		Success:      s.success,
		Failure:      s.failure,
		LatencyCount: len(s.latencies),
		P99Ms:        s.hist.quantileMs(99),
	}
	if len(s.latencies) > 0 {
		c.MeanLatencyMs = s.latencySum / float64(len(s.latencies))
	}
	return c
}

// Cursor marks how much of a stream a reader has already consumed.
type Cursor struct {
	Samples   uint64
	Failures  uint64
	Latencies int
}

// Window is what was recorded between two cursors.
type Window struct {
	Samples   uint64
	Failures  uint64
	Latencies []float64
}

// Since returns the data recorded after c and the cursor to pass next time.
// Only the new latency entries are copied.
func (m *Metrics) Since(kind Kind, c Cursor) (Window, Cursor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.streams[kind]
	next := Cursor{
		Samples:   s.success + s.failure,
		Failures:  s.failure,
		Latencies: len(s.latencies),
	}
	start := c.Latencies
	if start > next.Latencies {
		start = next.Latencies
	}
	fresh := make([]float64, next.Latencies-start)
	copy(fresh, s.latencies[start:])

	return Window{
		Samples:   next.Samples - min(c.Samples, next.Samples),
		Failures:  next.Failures - min(c.Failures, next.Failures),
		Latencies: fresh,
	}, next
}
