// Package metrics counts featurization work with Prometheus collectors on a
// private registry.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Recorder implements featurizer.Observer.
type Recorder struct {
	registry   *prometheus.Registry
	trackers   *prometheus.CounterVec
	examples   *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewRecorder registers the turnfeat collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		trackers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turnfeat_trackers_processed_total",
			Help: "Trackers walked by a featurization strategy",
		}, []string{"strategy"}),
		examples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turnfeat_examples_created_total",
			Help: "Training examples produced",
		}, []string{"strategy"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "turnfeat_duplicates_skipped_total",
			Help: "Training examples dropped by deduplication",
		}, []string{"strategy"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "turnfeat_featurize_duration_seconds",
			Help:    "Duration of complete featurization runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	r.registry.MustRegister(r.trackers, r.examples, r.duplicates, r.duration)
	return r
}

// TrackerProcessed implements featurizer.Observer.
func (r *Recorder) TrackerProcessed(strategy string) {
	r.trackers.WithLabelValues(strategy).Inc()
}

// ExampleCreated implements featurizer.Observer.
func (r *Recorder) ExampleCreated(strategy string) {
	r.examples.WithLabelValues(strategy).Inc()
}

// DuplicateSkipped implements featurizer.Observer.
func (r *Recorder) DuplicateSkipped(strategy string) {
	r.duplicates.WithLabelValues(strategy).Inc()
}

// ObserveRun records the duration of a featurization run.
func (r *Recorder) ObserveRun(d time.Duration) {
	r.duration.Observe(d.Seconds())
}

// Gather returns the current metric families.
func (r *Recorder) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}

// WriteText writes all metrics in the Prometheus text exposition format.
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
