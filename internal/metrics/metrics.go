package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reelforge"

// Recorder holds the render pipeline collectors. A nil *Recorder is valid and
// records nothing, so tests and tools can skip metrics entirely.
type Recorder struct {
	registry *prometheus.Registry

	jobsSubmitted     prometheus.Counter
	jobsFinished      *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	collaboratorCalls *prometheus.CounterVec
	retries           *prometheus.CounterVec
	encoderRuns       *prometheus.CounterVec
	encoderDuration   prometheus.Histogram
	queuePending      prometheus.Gauge
	jobsRunning       prometheus.Gauge
	jobCost           prometheus.Histogram
}

// New registers the pipeline collectors on a fresh registry together with the
// Go runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		jobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of accepted render jobs",
		}),
		jobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Total number of render jobs reaching a terminal state",
		}, []string{"status"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of pipeline stages",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage", "result"}),
		collaboratorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_calls_total",
			Help:      "Total number of collaborator calls by outcome",
		}, []string{"collaborator", "result"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_retries_total",
			Help:      "Total number of collaborator call retries",
		}, []string{"collaborator"}),
		encoderRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_invocations_total",
			Help:      "Total number of encoder invocations by outcome",
		}, []string{"result"}),
		encoderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encoder_duration_seconds",
			Help:      "Wall-clock duration of encoder invocations",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		queuePending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending",
			Help:      "Number of jobs waiting for a free slot",
		}),
		jobsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Number of jobs currently processing",
		}),
		jobCost: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_cost",
			Help:      "Total cost estimate of completed jobs",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) JobSubmitted() {
	if r == nil {
		return
	}
	r.jobsSubmitted.Inc()
}

func (r *Recorder) JobFinished(status string) {
	if r == nil {
		return
	}
	r.jobsFinished.WithLabelValues(status).Inc()
}

func (r *Recorder) StageFinished(stage string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage, outcome(err)).Observe(elapsed.Seconds())
}

func (r *Recorder) CollaboratorCall(collaborator string, err error) {
	if r == nil {
		return
	}
	r.collaboratorCalls.WithLabelValues(collaborator, outcome(err)).Inc()
}

func (r *Recorder) CollaboratorRetry(collaborator string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(collaborator).Inc()
}

func (r *Recorder) EncoderFinished(elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.encoderRuns.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		r.encoderDuration.Observe(elapsed.Seconds())
	}
}

// QueueDepth records the scheduler's pending and running counts.
func (r *Recorder) QueueDepth(pending, running int) {
	if r == nil {
		return
	}
	r.queuePending.Set(float64(pending))
	r.jobsRunning.Set(float64(running))
}

func (r *Recorder) JobCost(total float64) {
	if r == nil {
		return
	}
	r.jobCost.Observe(total)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
