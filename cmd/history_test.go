package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizload/internal/config"
	"quizload/internal/stats"
	"quizload/internal/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func seedHistory(t *testing.T) (string, storage.Record) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := storage.Open(path)
	require.NoError(t, err)
	defer store.Close()

	cfg := config.Default()
	cfg.ConcurrencyStep = 10
	results := []stats.RunResult{
		{Concurrency: 10, Elapsed: time.Second, Submit: stats.StreamResult{Samples: 100, Success: 100, Throughput: 100, AvgMs: 10}},
		{Concurrency: 20, Elapsed: time.Second, StopReason: "error rate 6.00% exceeded 4.00%",
			Submit: stats.StreamResult{Samples: 150, Success: 141, Failure: 9, ErrorRate: 0.06, Throughput: 150, AvgMs: 14}},
	}
	rec, err := storage.NewRecord(cfg, results)
	require.NoError(t, err)
	require.NoError(t, store.Save(rec))
	return path, rec
}

func TestHistoryListShowDelete(t *testing.T) {
	path, rec := seedHistory(t)

	out, err := execute(t, "history", "--history", path)
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID)
	assert.Contains(t, out, "error rate 6.00%")

	out, err = execute(t, "history", "show", rec.ID, "--history", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+rec.ID)
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "throughput peak")

	out, err = execute(t, "history", "rm", rec.ID, "--history", path)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+rec.ID)

	_, err = execute(t, "history", "show", rec.ID, "--history", path)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHistoryEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	out, err := execute(t, "history", "--history", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no runs stored")
}
