// Package issuer performs the submit and statistic operations against the
// answer service and folds every classified outcome into the run metrics.
package issuer

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"quizload/internal/sequencer"
	"quizload/internal/stats"
)

// Config describes the remote endpoints and the payload constants.
type Config struct {
	BaseURL     string
	SubmitPath  string
	StatPath    string // may contain {questionId} and {planId}
	PlanID      int
	SuccessCode int
	Answers     []string
}

type submitPayload struct {
	QuestionID int    `json:"questionId"`
	StudentID  int    `json:"studentId"`
	Answer     string `json:"answer"`
	PlanID     int    `json:"planId"`
}

// Issuer is safe for concurrent use.
type Issuer struct {
	cfg       Config
	transport Transport
	metrics   *stats.Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

type Option func(*Issuer)

// WithClock replaces the clock used to time calls.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func New(cfg Config, t Transport, m *stats.Metrics, log logrus.FieldLogger, opts ...Option) *Issuer {
	if cfg.SuccessCode == 0 {
		cfg.SuccessCode = http.StatusOK
	}
	i := &Issuer{
		cfg:       cfg,
		transport: t,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// SubmitTask sends every answer of the sequence for target, in order. Later
// steps run regardless of earlier failures.
func (i *Issuer) SubmitTask(ctx context.Context, target sequencer.Target) []stats.Outcome {
	out := make([]stats.Outcome, 0, len(i.cfg.Answers))
	for _, answer := range i.cfg.Answers {
		out = append(out, i.SubmitOne(ctx, target, answer))
	}
	return out
}

func (i *Issuer) SubmitOne(ctx context.Context, target sequencer.Target, answer string) stats.Outcome {
	body, err := json.Marshal(submitPayload{
		QuestionID: target.QuestionID,
		StudentID:  target.StudentID,
		Answer:     answer,
		PlanID:     i.cfg.PlanID,
	})
	if err != nil {
		// Not reachable for this payload shape; still counted as a failure.
		o := stats.Outcome{FailureReason: (&Failure{Kind: TransportOtherException, Err: err}).Error()}
		i.metrics.Record(stats.Submit, o)
		return o
	}

	return i.do(ctx, stats.Submit, Call{
		Method: http.MethodPost,
		URL:    i.cfg.BaseURL + i.cfg.SubmitPath,
		Body:   body,
	})
}

func (i *Issuer) StatOne(ctx context.Context, questionID int) stats.Outcome {
	return i.do(ctx, stats.Stat, Call{
		Method: http.MethodGet,
		URL:    i.cfg.BaseURL + i.StatPath(questionID),
	})
}

// StatPath expands the statistic path template for questionID.
func (i *Issuer) StatPath(questionID int) string {
	return strings.NewReplacer(
		"{questionId}", strconv.Itoa(questionID),
		"{planId}", strconv.Itoa(i.cfg.PlanID),
	).Replace(i.cfg.StatPath)
}

func (i *Issuer) do(ctx context.Context, kind stats.Kind, call Call) stats.Outcome {
	start := i.now()
	resp, err := i.transport.Do(ctx, call)
	latency := float64(i.now().Sub(start)) / float64(time.Millisecond)

	o := stats.Outcome{Success: true, LatencyMs: latency}
	if f := Classify(resp, err, i.cfg.SuccessCode); f != nil {
		o.Success = false
		o.FailureReason = f.Error()
		if f.Err != nil {
			i.log.WithFields(logrus.Fields{
				"stream": kind.String(),
				"url":    call.URL,
			}).WithError(f.Err).Debug("request failed")
		}
	}

	i.metrics.Record(kind, o)
	return o
}
