// Package metrics counts pipeline activity on a private Prometheus registry
// and exports it in the node_exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/report"
)

const metricsNamespace = "cisim"

// Outcome label values.
const (
	OutcomePass    = "pass"
	OutcomeFail    = "fail"
	OutcomeSkipped = "skipped"
)

// Recorder observes a run and keeps counters for it.
type Recorder struct {
	registry *prometheus.Registry

	jobsStarted   prometheus.Counter
	jobs          *prometheus.CounterVec
	steps         *prometheus.CounterVec
	stepDurations prometheus.Histogram
	runs          *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		jobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "started_total",
			Help:      "Count of jobs started",
		}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Count of jobs finished by outcome",
		}, []string{"outcome"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "steps",
			Name:      "finished_total",
			Help:      "Count of steps finished by outcome",
		}, []string{"outcome"}),
		stepDurations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "steps",
			Name:      "duration_seconds",
			Help:      "Time spent executing steps",
			Buckets:   prometheus.ExponentialBuckets(0.015625, 2, 16),
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipelines",
			Name:      "finished_total",
			Help:      "Count of pipeline runs by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

// Registry exposes the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) JobStarted(pipeline.Job) {
	r.jobsStarted.Inc()
}

func (r *Recorder) StepFinished(_ string, result report.StepResult) {
	r.steps.WithLabelValues(outcome(result.Skipped, result.Success)).Inc()
	if !result.Skipped {
		r.stepDurations.Observe(result.Duration.Seconds())
	}
}

func (r *Recorder) JobFinished(result report.JobResult) {
	r.jobs.WithLabelValues(outcome(result.Skipped, result.Success)).Inc()
}

// PipelineFinished counts a completed run.
func (r *Recorder) PipelineFinished(result report.PipelineResult) {
	r.runs.WithLabelValues(string(result.Dialect), outcome(false, result.Success)).Inc()
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %q: %w", path, err)
	}
	return nil
}

func outcome(skipped, success bool) string {
	switch {
	case skipped:
		return OutcomeSkipped
	case success:
		return OutcomePass
	default:
		return OutcomeFail
	}
}
