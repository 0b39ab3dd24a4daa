// Package metrics exposes Prometheus instrumentation for training and queries
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "w2v"

// Checkpoint results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors registered on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Iterations         prometheus.Counter
	Loss               prometheus.Gauge
	Epoch              prometheus.Gauge
	Checkpoints        *prometheus.CounterVec
	CheckpointDuration prometheus.Histogram
	Queries            *prometheus.CounterVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "train_iterations_total",
			Help:      "Training batches processed",
		}),
		Loss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_loss",
			Help:      "Loss of the most recent training batch",
		}),
		Epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "train_epoch",
			Help:      "Current outer training step",
		}),
		Checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoint attempts by result",
		}, []string{"result"}),
		CheckpointDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_duration_seconds",
			Help:      "Time spent writing a checkpoint",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Similarity queries by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.Iterations,
		m.Loss,
		m.Epoch,
		m.Checkpoints,
		m.CheckpointDuration,
		m.Queries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveStep records one training batch
func (m *Metrics) ObserveStep(loss float64) {
	if m == nil {
		return
	}
	m.Iterations.Inc()
	m.Loss.Set(loss)
}

// ObserveCheckpoint records a checkpoint attempt
func (m *Metrics) ObserveCheckpoint(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CheckpointDuration.Observe(d.Seconds())
	if err != nil {
		m.Checkpoints.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.Checkpoints.WithLabelValues(ResultSuccess).Inc()
}

// SetEpoch records the current outer step
func (m *Metrics) SetEpoch(n int) {
	if m == nil {
		return
	}
	m.Epoch.Set(float64(n))
}

// ObserveQuery records a similarity query outcome such as "hit", "miss" or "unknown"
func (m *Metrics) ObserveQuery(outcome string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
