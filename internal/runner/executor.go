package runner

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"quizload/internal/issuer"
	"quizload/internal/sequencer"
	"quizload/internal/stats"
)

// Executor keeps exactly Concurrency submit tasks in flight until the stop
// signal is raised or its context ends.
type Executor struct {
	Concurrency int

	pool       *Pool
	issuer     *issuer.Issuer
	seq        *sequencer.Sequencer
	metrics    *stats.Metrics
	thresholds Thresholds
	signal     *StopSignal
	log        logrus.FieldLogger

	inflight atomic.Int64
	launched atomic.Uint64
}

func NewExecutor(concurrency int, pool *Pool, iss *issuer.Issuer, seq *sequencer.Sequencer,
	m *stats.Metrics, th Thresholds, sig *StopSignal, log logrus.FieldLogger) *Executor {
	return &Executor{
		Concurrency: concurrency,
		pool:        pool,
		issuer:      iss,
		seq:         seq,
		metrics:     m,
		thresholds:  th,
		signal:      sig,
		log:         log,
	}
}

// InFlight is the number of submit tasks started and not yet finished.
func (e *Executor) InFlight() int64 {
	return e.inflight.Load()
}

// Launched is the number of submit tasks started so far.
func (e *Executor) Launched() uint64 {
	return e.launched.Load()
}

// Run drives the level. In-flight tasks are always drained before it
// returns; requests are not cancelled when ctx ends.
func (e *Executor) Run(ctx context.Context) error {
	reqCtx := context.WithoutCancel(ctx)
	// Every task reports here exactly once; capacity matches the maximum
	// number of tasks in flight so workers never block on it.
	done := make(chan struct{}, e.Concurrency)
	pending := 0

	launch := func() bool {
		target := e.seq.Take()
		e.inflight.Add(1)
		ok := e.pool.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.WithFields(logrus.Fields{
						"question": target.QuestionID,
						"student":  target.StudentID,
					}).Error(fmt.Sprintf("submit task panicked: %v", r))
				}
				e.inflight.Add(-1)
				done <- struct{}{}
			}()
			e.issuer.SubmitTask(reqCtx, target)
		})
		if !ok {
			e.inflight.Add(-1)
			return false
		}
		e.launched.Add(1)
		pending++
		return true
	}

	for i := 0; i < e.Concurrency; i++ {
		if !launch() {
			break
		}
	}

loop:
	for pending > 0 {
		if e.signal.Stopped() {
			break
		}

		// wait for any task
		select {
		case <-done:
		case <-ctx.Done():
			break loop
		case <-e.signal.Done():
			break loop
		}
		finished := 1
	drain:
		for {
			select {
			case <-done:
				finished++
			default:
				break drain
			}
		}
		pending -= finished

		if ctx.Err() == nil && !e.signal.Stopped() {
			for i := 0; i < finished; i++ {
				if !launch() {
					break
				}
			}
		}

		if v := e.thresholds.Evaluate(e.metrics.Cumulative(stats.Submit)); v.Stop {
			if e.signal.Raise(v.Reason) {
				e.log.WithField("concurrency", e.Concurrency).Warn(v.Detail + ", stopping run")
			}
			break
		}
	}

	for ; pending > 0; pending-- {
		<-done
	}
	return nil
}
