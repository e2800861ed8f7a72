package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizload/internal/config"
	"quizload/internal/report"
	"quizload/internal/stats"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func results() []stats.RunResult {
	return []stats.RunResult{
		{Concurrency: 10, Elapsed: time.Second, Submit: stats.StreamResult{Samples: 3, Success: 3, Latencies: []float64{1, 2, 3}}},
		{Concurrency: 15, Elapsed: time.Second, StopReason: "error rate exceeded",
			Submit: stats.StreamResult{Samples: 2, Failure: 2, FailureReasons: map[string]uint64{"Timeout": 2}}},
	}
}

func TestNewRecordDropsLatencies(t *testing.T) {
	rec, err := NewRecord(config.Default(), results())
	require.NoError(t, err)

	assert.Len(t, rec.ID, 36)
	assert.Equal(t, "error rate exceeded", rec.StopReason)
	require.Len(t, rec.Results, 2)
	assert.Nil(t, rec.Results[0].Submit.Latencies)
	assert.Equal(t, uint64(3), rec.Results[0].Submit.Success)
}

func TestSaveGetList(t *testing.T) {
	s := openTemp(t)

	var ids []string
	for i := 0; i < 3; i++ {
		cfg := config.Default()
		cfg.ConcurrencyLevel = 10 * (i + 1)
		rec, err := NewRecord(cfg, results())
		require.NoError(t, err)
		require.NoError(t, s.Save(rec))
		ids = append(ids, rec.ID)
	}

	got, err := s.Get(ids[1])
	require.NoError(t, err)
	assert.Equal(t, 20, got.Config.ConcurrencyLevel)
	assert.Equal(t, map[string]uint64{"Timeout": 2}, got.Results[1].Submit.FailureReasons)

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[2].ID)

	two, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestStoredRunKeepsPercentiles(t *testing.T) {
	m := stats.NewMetrics()
	for i := 1; i <= 100; i++ {
		m.Record(stats.Submit, stats.Outcome{Success: true, LatencyMs: float64(i)})
	}
	for i := 1; i <= 10; i++ {
		m.Record(stats.Stat, stats.Outcome{Success: true, LatencyMs: float64(i)})
	}
	m.Record(stats.Submit, stats.Outcome{FailureReason: "Timeout"})
	live := stats.NewRunResult(10, 10*time.Second, "", m)

	s := openTemp(t)
	rec, err := NewRecord(config.Default(), []stats.RunResult{live})
	require.NoError(t, err)
	require.NoError(t, s.Save(rec))
	got, err := s.Get(rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	require.Nil(t, got.Results[0].Submit.Latencies)

	want := report.Aggregate(live)
	rows := report.Aggregate(got.Results[0])
	require.Len(t, rows, 3)

	for i := 0; i < 2; i++ {
		assert.InDelta(t, want[i].MedianMs, rows[i].MedianMs, 1e-9, rows[i].Label)
		assert.InDelta(t, want[i].P90Ms, rows[i].P90Ms, 1e-9, rows[i].Label)
		assert.InDelta(t, want[i].P95Ms, rows[i].P95Ms, 1e-9, rows[i].Label)
		assert.InDelta(t, want[i].P99Ms, rows[i].P99Ms, 1e-9, rows[i].Label)
		assert.InDelta(t, want[i].StdDevMs, rows[i].StdDevMs, 1e-9, rows[i].Label)
		assert.InDelta(t, want[i].AvgMs, rows[i].AvgMs, 1e-9, rows[i].Label)
	}
	assert.InDelta(t, 50.5, rows[0].MedianMs, 1e-9)
	assert.InDelta(t, 90.1, rows[0].P90Ms, 1e-9)
	assert.InDelta(t, 99.01, rows[0].P99Ms, 1e-9)

	total := rows[2]
	assert.Equal(t, want[2].Samples, total.Samples)
	assert.InDelta(t, want[2].AvgMs, total.AvgMs, 1e-9)
	assert.Equal(t, 1.0, total.MinMs)
	assert.Equal(t, 100.0, total.MaxMs)
	assert.Greater(t, total.P99Ms, 0.0)
	assert.LessOrEqual(t, total.MedianMs, total.P90Ms)
	assert.LessOrEqual(t, total.P99Ms, total.MaxMs)

	a := report.Analyze(got.Results, 5, 0.04)
	assert.InDelta(t, 99.01, a.Levels[0].SubmitP99Ms, 1e-9)
}

func TestGetMissing(t *testing.T) {
	s := openTemp(t)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("nope"), ErrNotFound)
}

func TestDeleteAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)

	a, _ := NewRecord(config.Default(), results())
	b, _ := NewRecord(config.Default(), results())
	require.NoError(t, s.Save(a))
	require.NoError(t, s.Save(b))
	require.NoError(t, s.Delete(a.ID))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
	assert.Equal(t, path, s.Path())
}
