package stats

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileEmpty(t *testing.T) {
	for _, p := range []float64{0, 50, 90, 99, 100} {
		assert.Equal(t, 0.0, Percentile(nil, p))
	}
}

func TestPercentileSingleValue(t *testing.T) {
	for _, p := range []float64{0, 50, 90, 95, 99, 100} {
		assert.Equal(t, 42.5, Percentile([]float64{42.5}, p))
	}
}

func TestPercentileVectors(t *testing.T) {
	values := []float64{50, 10, 40, 20, 30}

	assert.InDelta(t, 30.0, Percentile(values, 50), 1e-9)
	assert.InDelta(t, 46.0, Percentile(values, 90), 1e-9)
	assert.InDelta(t, 48.0, Percentile(values, 95), 1e-9)
	assert.InDelta(t, 49.6, Percentile(values, 99), 1e-9)

	// input stays untouched
	assert.Equal(t, []float64{50, 10, 40, 20, 30}, values)
}

func TestDescribeOrdering(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	values := make([]float64, 500)
	for i := range values {
		values[i] = r.Float64() * 1000
	}

	d := Describe(values)
	require.Equal(t, 500, d.Count)
	assert.LessOrEqual(t, d.Min, d.P50)
	assert.LessOrEqual(t, d.P50, d.P90)
	assert.LessOrEqual(t, d.P90, d.P95)
	assert.LessOrEqual(t, d.P95, d.P99)
	assert.LessOrEqual(t, d.P99, d.Max)
}

func TestDescribeStdDev(t *testing.T) {
	d := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, d.Mean, 1e-9)
	assert.InDelta(t, 2.138089935, d.StdDev, 1e-6)

	assert.Equal(t, 0.0, Describe([]float64{3}).StdDev)
}

func TestMetricsRecordAsymmetry(t *testing.T) {
	m := NewMetrics()
	m.Record(Submit, Outcome{Success: true, LatencyMs: 100})
	m.Record(Submit, Outcome{Success: false, LatencyMs: 50, FailureReason: "Status 500"})
	m.Record(Submit, Outcome{Success: false, LatencyMs: 3000, FailureReason: "Timeout"})
	m.Record(Submit, Outcome{Success: false, LatencyMs: 20, FailureReason: "Status 500"})

	snap := m.Snapshot(Submit)
	assert.Equal(t, uint64(1), snap.Success)
	assert.Equal(t, uint64(3), snap.Failure)
	assert.Equal(t, []float64{100}, snap.Latencies)
	assert.Equal(t, map[string]uint64{"Status 500": 2, "Timeout": 1}, snap.FailureReasons)

	stat := m.Snapshot(Stat)
	assert.Zero(t, stat.Samples())

	c := m.Cumulative(Submit)
	assert.Equal(t, 100.0, c.MeanLatencyMs)
	assert.Equal(t, 0.75, c.ErrorRate())
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics()
	m.Record(Stat, Outcome{Success: true, LatencyMs: 1})
	snap := m.Snapshot(Stat)
	snap.Latencies[0] = 99
	snap.FailureReasons["x"] = 1

	again := m.Snapshot(Stat)
	assert.Equal(t, []float64{1}, again.Latencies)
	assert.Empty(t, again.FailureReasons)
}

func TestMetricsSinceWatermark(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 3; i++ {
		m.Record(Submit, Outcome{Success: true, LatencyMs: float64(i + 1)})
	}
	m.Record(Submit, Outcome{FailureReason: "Timeout"})

	w, cur := m.Since(Submit, Cursor{})
	assert.Equal(t, uint64(4), w.Samples)
	assert.Equal(t, uint64(1), w.Failures)
	assert.Equal(t, []float64{1, 2, 3}, w.Latencies)

	m.Record(Submit, Outcome{Success: true, LatencyMs: 10})
	w, _ = m.Since(Submit, cur)
	assert.Equal(t, uint64(1), w.Samples)
	assert.Equal(t, uint64(0), w.Failures)
	assert.Equal(t, []float64{10}, w.Latencies)
}

type countingObserver struct {
	mu    sync.Mutex
	calls map[Kind]int
}

func (o *countingObserver) Observe(kind Kind, _ Outcome) {
	o.mu.Lock()
	o.calls[kind]++
	o.mu.Unlock()
}

func TestMetricsConcurrentWriters(t *testing.T) {
	obs := &countingObserver{calls: map[Kind]int{}}
	m := NewMetrics(obs)

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				if i%10 == 0 {
					m.Record(Stat, Outcome{FailureReason: "Connection Error"})
					continue
				}
				m.Record(Submit, Outcome{Success: true, LatencyMs: float64(w)})
			}
		}(w)
	}
	wg.Wait()

	sub := m.Snapshot(Submit)
	st := m.Snapshot(Stat)
	assert.Equal(t, uint64(16*225), sub.Success)
	assert.Len(t, sub.Latencies, 16*225)
	assert.Equal(t, uint64(16*25), st.Failure)
	assert.Equal(t, 16*225, obs.calls[Submit])
	assert.Equal(t, 16*25, obs.calls[Stat])
}

func TestCumulativeP99FromHistogram(t *testing.T) {
	m := NewMetrics()
	for i := 1; i <= 100; i++ {
		m.Record(Submit, Outcome{Success: true, LatencyMs: float64(i)})
	}
	c := m.Cumulative(Submit)
	assert.InDelta(t, 99.0, c.P99Ms, 0.5)
}

func TestNewRunResult(t *testing.T) {
	m := NewMetrics()
	m.Record(Submit, Outcome{Success: true, LatencyMs: 10})
	m.Record(Submit, Outcome{Success: true, LatencyMs: 30})
	m.Record(Submit, Outcome{FailureReason: "Status 502"})
	m.Record(Stat, Outcome{Success: true, LatencyMs: 5})

	res := NewRunResult(8, 2*time.Second, "latency exceeded", m)
	assert.Equal(t, 8, res.Concurrency)
	assert.Equal(t, "latency exceeded", res.StopReason)
	assert.Equal(t, uint64(3), res.Submit.Samples)
	assert.InDelta(t, 1.5, res.Submit.Throughput, 1e-9)
	assert.Equal(t, 20.0, res.Submit.AvgMs)
	assert.Equal(t, 10.0, res.Submit.MinMs)
	assert.Equal(t, 30.0, res.Submit.MaxMs)
	assert.InDelta(t, 1.0/3.0, res.ErrorRate(), 1e-9)
	assert.Equal(t, 0.5, res.Stat.Throughput)

	assert.Equal(t, 20.0, res.Submit.MedianMs)
	assert.InDelta(t, 28.0, res.Submit.P90Ms, 1e-9)
	assert.InDelta(t, 29.8, res.Submit.P99Ms, 1e-9)

	stripped := res.WithoutLatencies()
	assert.Nil(t, stripped.Submit.Latencies)
	assert.Len(t, res.Submit.Latencies, 2)
	assert.Equal(t, res.Submit.Summary(), stripped.Submit.Summary())
}
