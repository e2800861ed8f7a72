package runner

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool runs jobs on a fixed set of workers. Submit and stat jobs of one
// level share it, so at most `workers` calls are on the wire at once.
type Pool struct {
	jobs   chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	log    logrus.FieldLogger
}

func NewPool(workers, queue int, log logrus.FieldLogger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{
		jobs: make(chan func(), queue),
		log:  log,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("job panicked")
		}
	}()
	job()
}

// Submit queues job, blocking while the queue is full. It returns false
// once the pool is closed.
func (p *Pool) Submit(job func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.jobs <- job
	return true
}

// Close stops accepting jobs, lets the workers finish everything already
// queued and waits for them.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
