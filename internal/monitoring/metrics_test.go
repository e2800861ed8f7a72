package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizload/internal/runner"
	"quizload/internal/stats"
)

func TestObserve(t *testing.T) {
	c := NewCollector()
	m := stats.NewMetrics(c)

	m.Record(stats.Submit, stats.Outcome{Success: true, LatencyMs: 12})
	m.Record(stats.Submit, stats.Outcome{Success: true, LatencyMs: 30})
	m.Record(stats.Submit, stats.Outcome{FailureReason: "Timeout"})
	m.Record(stats.Stat, stats.Outcome{FailureReason: "Status 500"})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("submit", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("submit", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("submit", "Timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("stat", "Status 500")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestPublish(t *testing.T) {
	c := NewCollector()

	c.Publish(runner.LevelStarted{Concurrency: 40})
	c.Publish(runner.Tick{
		InFlight: 40,
		Submit:   runner.StreamTick{Kind: stats.Submit, Throughput: 120, AvgLatencyMs: 35, ErrorRate: 2.5, P99Ms: 90},
		Stat:     runner.StreamTick{Kind: stats.Stat, Throughput: 10},
	})

	assert.Equal(t, 40.0, testutil.ToFloat64(c.level))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.inflight))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.throughput.WithLabelValues("submit")))
	assert.InDelta(t, 0.025, testutil.ToFloat64(c.errorRatio.WithLabelValues("submit")), 1e-9)
	assert.Equal(t, 90.0, testutil.ToFloat64(c.p99.WithLabelValues("submit")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.throughput.WithLabelValues("stat")))

	c.Publish(runner.LevelFinished{Result: stats.RunResult{Concurrency: 40, StopReason: runner.ReasonErrorRate}})
	c.Publish(runner.LevelFinished{Result: stats.RunResult{Concurrency: 45}})
	assert.Equal(t, 2.0, testutil.ToFloat64(c.levelsDone))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inflight))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stopped.WithLabelValues(runner.ReasonErrorRate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stopped.WithLabelValues("completed")))
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.Observe(stats.Submit, stats.Outcome{Success: true, LatencyMs: 5})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `quizload_requests_total{kind="submit",result="success"} 1`)
	assert.Contains(t, string(body), "quizload_request_duration_seconds_bucket")
}
