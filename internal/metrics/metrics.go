// Package metrics holds the Prometheus instrumentation for MCP tool calls.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tool call outcomes
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeDomainError = "domain_error"
)

const maxLabelLen = 64

// sanitizeLabel keeps label values short and non-empty
func sanitizeLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}

// Metrics records tool call counts and latencies on its own registry
type Metrics struct {
	registry     *prometheus.Registry
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with the Go runtime and
// process collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "incidentfox",
				Name:      "tool_calls_total",
				Help:      "Total MCP tool calls by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "incidentfox",
				Name:      "tool_call_duration_seconds",
				Help:      "MCP tool call latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"tool"},
		),
	}

	m.registry.MustRegister(
		m.toolCalls,
		m.toolDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveToolCall records one finished tool call
func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	tool = sanitizeLabel(tool)
	m.toolCalls.WithLabelValues(tool, sanitizeLabel(outcome)).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
