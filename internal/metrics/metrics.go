// Package metrics collects Prometheus metrics for provider calls, pipeline
// stages and run outcomes.
//
// Usage:
//
//	m := metrics.New()
//	m.RecordProviderCall("voyage", "rerank", "success", time.Since(start).Seconds())
//	m.WriteTextfile("ragbench.prom")
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	registry *prometheus.Registry

	// ProviderRequests counts provider calls.
	// Labels: provider, op (embed|generate|rerank|search|bulk), status (success|error)
	ProviderRequests *prometheus.CounterVec

	// ProviderDuration measures provider call latency in seconds.
	// Labels: provider, op
	ProviderDuration *prometheus.HistogramVec

	// ProviderRetries counts retried attempts.
	// Labels: provider, op
	ProviderRetries *prometheus.CounterVec

	// DegradedEmbeddings counts embeddings replaced by zero vectors.
	// Labels: provider, input (document|query)
	DegradedEmbeddings *prometheus.CounterVec

	// StageDuration measures pipeline stage wall time in seconds.
	// Labels: stage (index|rewrite|retrieve|rerank|evaluate|persist)
	StageDuration *prometheus.HistogramVec

	// Recall holds the last recall of each run.
	// Labels: run_id, k
	Recall *prometheus.GaugeVec

	// Runs counts finished runs.
	// Labels: status (success|error)
	Runs *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ProviderRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragbench_provider_requests_total",
				Help: "Total number of provider requests by provider, operation and status",
			},
			[]string{"provider", "op", "status"},
		),
		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragbench_provider_request_duration_seconds",
				Help:    "Duration of provider requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "op"},
		),
		ProviderRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragbench_provider_retries_total",
				Help: "Total number of retried provider attempts",
			},
			[]string{"provider", "op"},
		),
		DegradedEmbeddings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragbench_degraded_embeddings_total",
				Help: "Embeddings replaced by zero vectors after a provider failure",
			},
			[]string{"provider", "input"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragbench_stage_duration_seconds",
				Help:    "Wall time of each pipeline stage in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"stage"},
		),
		Recall: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ragbench_recall",
				Help: "Recall@k of each finished run",
			},
			[]string{"run_id", "k"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragbench_runs_total",
				Help: "Total number of runs by status",
			},
			[]string{"status"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordProviderCall(provider, op, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, op, status).Inc()
	m.ProviderDuration.WithLabelValues(provider, op).Observe(durationSeconds)
}

func (m *Metrics) RecordRetry(provider, op string) {
	if m == nil {
		return
	}
	m.ProviderRetries.WithLabelValues(provider, op).Inc()
}

func (m *Metrics) RecordDegraded(provider, input string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DegradedEmbeddings.WithLabelValues(provider, input).Add(float64(n))
}

func (m *Metrics) RecordStage(stage string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordRun counts a finished run and, on success, its recall values keyed
// by metric name (Recall@k).
func (m *Metrics) RecordRun(runID string, recall map[string]float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Runs.WithLabelValues("error").Inc()
		return
	}
	m.Runs.WithLabelValues("success").Inc()
	for name, value := range recall {
		m.Recall.WithLabelValues(runID, kLabel(name)).Set(value)
	}
}

// kLabel turns "Recall@5" into "5".
func kLabel(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '@' {
			if _, err := strconv.Atoi(name[i+1:]); err == nil {
				return name[i+1:]
			}
			break
		}
	}
	return name
}

// WriteTextfile writes a snapshot in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
