// Package metrics exposes prediction counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leafcare"

// Pipeline stages reported on failure.
const (
	StageInput     = "input"
	StageDecode    = "decode"
	StageModelLoad = "model_load"
	StageInference = "inference"
	StageResolve   = "resolve"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	errors      *prometheus.CounterVec
	inference   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Completed predictions by predicted label.",
		}, []string{"label"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Failed predictions by pipeline stage.",
		}, []string{"stage"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time spent in the model forward pass.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.predictions,
		m.errors,
		m.inference,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Prediction(label string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(label).Inc()
}

func (m *Metrics) Failure(stage string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.inference.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
