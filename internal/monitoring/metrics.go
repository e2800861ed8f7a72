// Package monitoring exposes a run's live figures as Prometheus metrics.
package monitoring

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"quizload/internal/runner"
	"quizload/internal/stats"
)

const namespace = "quizload"

// Collector records every outcome and every runner event on its own
// registry. It is both a stats.Observer and a runner.Sink.
type Collector struct {
	Registry *prometheus.Registry

	requests   *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	throughput *prometheus.GaugeVec
	latency    *prometheus.GaugeVec
	errorRatio *prometheus.GaugeVec
	p99        *prometheus.GaugeVec
	inflight   prometheus.Gauge
	level      prometheus.Gauge
	levelsDone prometheus.Counter
	stopped    *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		Registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests issued, by stream and result.",
		}, []string{"kind", "result"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed requests, by stream and classified reason.",
		}, []string{"kind", "reason"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of successful requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		}, []string{"kind"}),
		throughput: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_throughput",
			Help:      "Requests per second over the last reporting interval.",
		}, []string{"kind"}),
		latency: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_latency_ms",
			Help:      "Average latency over the last reporting interval.",
		}, []string{"kind"}),
		errorRatio: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_error_ratio",
			Help:      "Failed share of requests over the last reporting interval.",
		}, []string{"kind"}),
		p99: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "p99_latency_ms",
			Help:      "Cumulative 99th percentile latency of the current level.",
		}, []string{"kind"}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_tasks",
			Help:      "Submit tasks currently in flight.",
		}),
		level: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "concurrency_level",
			Help:      "Concurrency level under test.",
		}),
		levelsDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "levels_completed_total",
			Help:      "Concurrency levels completed.",
		}),
		stopped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_stops_total",
			Help:      "Levels ended, by reason.",
		}, []string{"reason"}),
	}
}

// Observe implements stats.Observer.
func (c *Collector) Observe(kind stats.Kind, o stats.Outcome) {
	k := kind.String()
	if o.Success {
		c.requests.WithLabelValues(k, "success").Inc()
		c.duration.WithLabelValues(k).Observe(o.LatencyMs / 1000)
		return
	}
	c.requests.WithLabelValues(k, "failure").Inc()
	c.failures.WithLabelValues(k, o.FailureReason).Inc()
}

// Publish implements runner.Sink.
func (c *Collector) Publish(e runner.Event) {
	switch ev := e.(type) {
	case runner.LevelStarted:
		c.level.Set(float64(ev.Concurrency))
	case runner.Tick:
		c.inflight.Set(float64(ev.InFlight))
		for _, st := range []runner.StreamTick{ev.Submit, ev.Stat} {
			k := st.Kind.String()
			c.throughput.WithLabelValues(k).Set(st.Throughput)
			c.latency.WithLabelValues(k).Set(st.AvgLatencyMs)
			c.errorRatio.WithLabelValues(k).Set(st.ErrorRate / 100)
			c.p99.WithLabelValues(k).Set(st.P99Ms)
		}
	case runner.LevelFinished:
		c.levelsDone.Inc()
		c.inflight.Set(0)
		reason := ev.Result.StopReason
		if reason == "" {
			reason = "completed"
		}
		c.stopped.WithLabelValues(reason).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{Registry: c.Registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, log logrus.FieldLogger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", ln.Addr().String()).Info("metrics server started at /metrics")
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
