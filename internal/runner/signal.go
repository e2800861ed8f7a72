package runner

import (
	"sync"
	"sync/atomic"
)

// StopSignal is the set-once flag every loop of a run polls. The first
// reason wins; later raises are no-ops.
type StopSignal struct {
	stopped atomic.Bool
	once    sync.Once
	mu      sync.Mutex
	reason  string
	done    chan struct{}
}

func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Raise sets the signal. It reports whether this call was the one that set it.
func (s *StopSignal) Raise(reason string) bool {
	raised := false
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		s.stopped.Store(true)
		close(s.done)
		raised = true
	})
	return raised
}

func (s *StopSignal) Stopped() bool {
	return s.stopped.Load()
}

func (s *StopSignal) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Done is closed once the signal is raised, for use in select.
func (s *StopSignal) Done() <-chan struct{} {
	return s.done
}
