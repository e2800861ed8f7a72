package runner

import (
	"context"
	"sync/atomic"
	"time"

	"quizload/internal/issuer"
)

// StatScheduler issues PerTarget statistic queries per tracked question on
// every tick, independently of the submit executor.
type StatScheduler struct {
	QuestionIDs []int
	PerTarget   int
	Interval    time.Duration

	pool   *Pool
	issuer *issuer.Issuer
	signal *StopSignal
	issued atomic.Uint64
}

func NewStatScheduler(ids []int, perTarget int, pool *Pool, iss *issuer.Issuer, sig *StopSignal) *StatScheduler {
	return &StatScheduler{
		QuestionIDs: ids,
		PerTarget:   perTarget,
		Interval:    time.Second,
		pool:        pool,
		issuer:      iss,
		signal:      sig,
	}
}

// Issued is the number of stat jobs handed to the pool.
func (s *StatScheduler) Issued() uint64 {
	return s.issued.Load()
}

// Run paces ticks to Interval. A tick that takes longer than Interval to
// issue is not skipped; the next one simply starts late.
func (s *StatScheduler) Run(ctx context.Context) {
	if len(s.QuestionIDs) == 0 || s.PerTarget <= 0 {
		return
	}
	reqCtx := context.WithoutCancel(ctx)

	for !s.stopped(ctx) {
		tickStart := time.Now()

	issue:
		for _, id := range s.QuestionIDs {
			for i := 0; i < s.PerTarget; i++ {
				if s.stopped(ctx) {
					break issue
				}
				if !s.pool.Submit(func() { s.issuer.StatOne(reqCtx, id) }) {
					return
				}
				s.issued.Add(1)
			}
		}

		wait := s.Interval - time.Since(tickStart)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.signal.Done():
			timer.Stop()
			return
		}
	}
}

func (s *StatScheduler) stopped(ctx context.Context) bool {
	return ctx.Err() != nil || s.signal.Stopped()
}
