package runner

import (
	"time"

	"quizload/internal/stats"
)

// Event is anything the runner publishes while a run is in progress.
type Event interface {
	isEvent()
}

// Sink receives events. Publish is called from the reporter and runner
// goroutines, never from request workers.
type Sink interface {
	Publish(Event)
}

// LevelStarted is published before a concurrency level begins.
type LevelStarted struct {
	Concurrency int
	Index       int
	Total       int
	Duration    time.Duration
}

// StreamTick is one stream's figures for the last reporting interval.
type StreamTick struct {
	Kind         stats.Kind
	Samples      uint64
	Failures     uint64
	Throughput   float64
	AvgLatencyMs float64
	ErrorRate    float64 // percent
	TotalSamples uint64
	P99Ms        float64 // cumulative
}

// Tick is published once per reporting interval.
type Tick struct {
	Concurrency int
	Elapsed     time.Duration
	InFlight    int64
	Submit      StreamTick
	Stat        StreamTick
}

// LevelFinished carries the result of a completed level.
type LevelFinished struct {
	Index  int
	Total  int
	Result stats.RunResult
}

func (LevelStarted) isEvent()  {}
func (Tick) isEvent()          {}
func (LevelFinished) isEvent() {}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }
