package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports routing and trust metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Resolution metrics
	resolutions       *prometheus.CounterVec
	resolutionLatency *prometheus.HistogramVec

	// Trust metrics
	trustDecisions *prometheus.CounterVec

	// Grounding metrics
	groundingVerdicts *prometheus.CounterVec

	// LLM metrics
	llmLatency *prometheus.HistogramVec
	llmTokens  *prometheus.CounterVec
}

// ExporterConfig configures the Prometheus exporter.
type ExporterConfig struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg ExporterConfig) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "routing",
			Name:      "resolutions_total",
			Help:      "Total intent resolutions by tier, intent and status",
		},
		[]string{"tier", "intent", "status"},
	)

	e.resolutionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kestrel",
			Subsystem: "routing",
			Name:      "resolution_latency_seconds",
			Help:      "End-to-end turn latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"tier"},
	)

	e.trustDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "trust",
			Name:      "decisions_total",
			Help:      "Total trust gate decisions by mode",
		},
		[]string{"mode", "channel"},
	)

	e.groundingVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "grounding",
			Name:      "verdicts_total",
			Help:      "Total grounding verdicts",
		},
		[]string{"grounded"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kestrel",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "LLM request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"model", "provider"},
	)

	e.llmTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	registry.MustRegister(
		e.resolutions,
		e.resolutionLatency,
		e.trustDecisions,
		e.groundingVerdicts,
		e.llmLatency,
		e.llmTokens,
	)

	return e
}

// RecordResolution records one processed turn.
func (e *PrometheusExporter) RecordResolution(rec *Record) {
	status := "success"
	if !rec.Success {
		status = "error"
	}
	tier := strconv.Itoa(rec.Tier)

	e.resolutions.WithLabelValues(tier, string(rec.Intent), status).Inc()
	e.resolutionLatency.WithLabelValues(tier).Observe(float64(rec.LatencyMs) / 1000)
	e.groundingVerdicts.WithLabelValues(strconv.FormatBool(rec.Grounded)).Inc()
}

// RecordTrustDecision records a trust gate outcome.
func (e *PrometheusExporter) RecordTrustDecision(mode, channel string) {
	e.trustDecisions.WithLabelValues(mode, channel).Inc()
}

// RecordLLMLatency records LLM request latency.
func (e *PrometheusExporter) RecordLLMLatency(model, provider string, latency time.Duration) {
	e.llmLatency.WithLabelValues(model, provider).Observe(latency.Seconds())
}

// RecordLLMTokens records LLM token usage.
func (e *PrometheusExporter) RecordLLMTokens(model, tokenType string, count int) {
	e.llmTokens.WithLabelValues(model, tokenType).Add(float64(count))
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
