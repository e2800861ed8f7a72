package runner

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"quizload/internal/config"
	"quizload/internal/issuer"
	"quizload/internal/sequencer"
	"quizload/internal/stats"
)

// Runner executes one concurrency level, or a sweep of levels, against the
// answer service. All levels of a run share one StopSignal: once a
// threshold trips, no further level starts.
type Runner struct {
	Cfg config.Config

	transport  issuer.Transport
	log        logrus.FieldLogger
	signal     *StopSignal
	observers  []stats.Observer
	sinks      []Sink
	issuerOpts []issuer.Option

	statInterval   time.Duration
	reportInterval time.Duration

	mu      sync.Mutex
	results []stats.RunResult
}

type Option func(*Runner)

// WithObservers attaches per-outcome observers to every level's metrics.
func WithObservers(obs ...stats.Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, obs...) }
}

// WithSinks subscribes sinks to runner events.
func WithSinks(sinks ...Sink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, sinks...) }
}

func WithIssuerOptions(opts ...issuer.Option) Option {
	return func(r *Runner) { r.issuerOpts = append(r.issuerOpts, opts...) }
}

// WithIntervals overrides the stat tick and report intervals (1s each).
func WithIntervals(stat, report time.Duration) Option {
	return func(r *Runner) {
		r.statInterval = stat
		r.reportInterval = report
	}
}

func New(cfg config.Config, t issuer.Transport, log logrus.FieldLogger, opts ...Option) *Runner {
	r := &Runner{
		Cfg:            cfg,
		transport:      t,
		log:            log,
		signal:         NewStopSignal(),
		statInterval:   time.Second,
		reportInterval: time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) Signal() *StopSignal {
	return r.signal
}

// Results returns the levels completed so far.
func (r *Runner) Results() []stats.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stats.RunResult, len(r.results))
	copy(out, r.results)
	return out
}

// Run tests every configured level in order and returns their results. It
// stops early when the stop signal is raised or ctx is cancelled; the level
// in progress still yields a complete result.
func (r *Runner) Run(ctx context.Context) []stats.RunResult {
	levels := r.Cfg.Levels()

	for i, c := range levels {
		if ctx.Err() != nil || r.signal.Stopped() {
			break
		}
		r.publish(LevelStarted{Concurrency: c, Index: i, Total: len(levels), Duration: r.Cfg.LevelDuration()})

		res := r.RunLevel(ctx, c)

		r.mu.Lock()
		r.results = append(r.results, res)
		r.mu.Unlock()
		r.publish(LevelFinished{Index: i, Total: len(levels), Result: res})

		r.log.WithFields(logrus.Fields{
			"concurrency": c,
			"elapsed":     res.Elapsed.Round(time.Millisecond).String(),
			"submit_tps":  res.Submit.Throughput,
			"submit_avg":  res.Submit.AvgMs,
			"stat_tps":    res.Stat.Throughput,
			"error_rate":  res.ErrorRate(),
			"reason":      res.StopReason,
		}).Info("level finished")
	}

	return r.Results()
}

// RunLevel keeps concurrency submit tasks in flight, polls statistics at
// the configured rate and reports every interval, until a threshold trips,
// the level duration elapses or ctx is cancelled.
func (r *Runner) RunLevel(ctx context.Context, concurrency int) stats.RunResult {
	log := r.log.WithField("concurrency", concurrency)
	metrics := stats.NewMetrics(r.observers...)
	iss := issuer.New(r.issuerConfig(), r.transport, metrics, log, r.issuerOpts...)
	seq := sequencer.New(sequencer.Config{
		QuestionCount:  r.Cfg.QuestionCount,
		StudentCount:   r.Cfg.StudentCount,
		QuestionOffset: r.Cfg.QuestionOffset,
		StudentOffset:  r.Cfg.StudentOffset,
	})

	statIDs := r.Cfg.StatQuestionIDs
	if len(statIDs) == 0 {
		statIDs = seq.QuestionRange()
	}
	burst := len(statIDs) * max(r.Cfg.StatQueriesPerSecondPerTarget, 0)
	pool := NewPool(concurrency, concurrency*2+burst, log)

	var (
		levelCtx context.Context
		cancel   context.CancelFunc
	)
	if d := r.Cfg.LevelDuration(); d > 0 {
		levelCtx, cancel = context.WithTimeout(ctx, d)
	} else {
		levelCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	exec := NewExecutor(concurrency, pool, iss, seq, metrics, Thresholds{
		ErrorRate: r.Cfg.ErrorRateThreshold,
		LatencyMs: r.Cfg.LatencyThresholdMs,
	}, r.signal, log)

	sched := NewStatScheduler(statIDs, r.Cfg.StatQueriesPerSecondPerTarget, pool, iss, r.signal)
	sched.Interval = r.statInterval

	rep := NewReporter(concurrency, metrics, r.signal, exec.InFlight, log, r.sinks...)
	rep.Interval = r.reportInterval

	log.WithFields(logrus.Fields{
		"stat_targets": len(statIDs),
		"duration":     r.Cfg.LevelDuration().String(),
	}).Info("level started")

	start := time.Now()
	g, gctx := errgroup.WithContext(levelCtx)
	g.Go(func() error {
		defer cancel()
		return exec.Run(gctx)
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		rep.Run(gctx)
		return nil
	})
	_ = g.Wait()
	pool.Close()
	elapsed := time.Since(start)

	return stats.NewRunResult(concurrency, elapsed, r.levelReason(ctx, levelCtx), metrics)
}

func (r *Runner) levelReason(parent, level context.Context) string {
	switch {
	case r.signal.Stopped():
		return r.signal.Reason()
	case parent.Err() != nil:
		return ReasonInterrupted
	case level.Err() == context.DeadlineExceeded:
		return ReasonDuration
	default:
		return ""
	}
}

func (r *Runner) issuerConfig() issuer.Config {
	return issuer.Config{
		BaseURL:     r.Cfg.BaseURL,
		SubmitPath:  r.Cfg.SubmitPath,
		StatPath:    r.Cfg.StatPath,
		PlanID:      r.Cfg.PlanID,
		SuccessCode: r.Cfg.SuccessCode,
		Answers:     r.Cfg.AnswerSequence,
	}
}

func (r *Runner) publish(e Event) {
	for _, s := range r.sinks {
		s.Publish(e)
	}
}
