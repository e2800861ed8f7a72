// Package sequencer maps an ever-increasing task counter to the
// (question, student) pair a submit task works on.
package sequencer

import (
	"sync/atomic"
)

// Target is one question/student pair driving one multi-step submit task.
type Target struct {
	QuestionID int `json:"questionId"`
	StudentID  int `json:"studentId"`
}

// Config selects the id policy. QuestionCount <= 0 means question ids grow
// without bound (one fresh question per task, students cycle); a positive
// QuestionCount cycles questions first and moves to the next student once
// every question has been used.
type Config struct {
	QuestionCount  int
	StudentCount   int
	QuestionOffset int
	StudentOffset  int
}

type Sequencer struct {
	cfg     Config
	counter atomic.Uint64
}

func New(cfg Config) *Sequencer {
	if cfg.StudentCount <= 0 {
		cfg.StudentCount = 1
	}
	return &Sequencer{cfg: cfg}
}

// Cyclic reports whether question ids are reused within a run.
func (s *Sequencer) Cyclic() bool {
	return s.cfg.QuestionCount > 0
}

// Next is a pure function of counter.
func (s *Sequencer) Next(counter uint64) Target {
	students := uint64(s.cfg.StudentCount)

	if !s.Cyclic() {
		return Target{
			QuestionID: int(counter) + s.cfg.QuestionOffset,
			StudentID:  int(counter%students) + s.cfg.StudentOffset,
		}
	}

	questions := uint64(s.cfg.QuestionCount)
	return Target{
		QuestionID: int(counter%questions) + s.cfg.QuestionOffset,
		StudentID:  int((counter/questions)%students) + s.cfg.StudentOffset,
	}
}

// Take advances the shared counter and returns its target. Safe for
// concurrent use.
func (s *Sequencer) Take() Target {
	return s.Next(s.counter.Add(1) - 1)
}

// Issued returns how many targets Take has handed out.
func (s *Sequencer) Issued() uint64 {
	return s.counter.Load()
}

// QuestionRange lists every question id a cyclic sequencer produces, or nil
// for the unbounded policy.
func (s *Sequencer) QuestionRange() []int {
	if !s.Cyclic() {
		return nil
	}
	ids := make([]int, s.cfg.QuestionCount)
	for i := range ids {
		ids[i] = s.cfg.QuestionOffset + i
	}
	return ids
}
