package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus metrics for graph execution.
//
// Metrics exposed (all namespaced with "teamgraph_"):
//
//  1. active_runs (gauge): runs currently executing. Labels: graph.
//  2. step_latency_ms (histogram): node execution duration. Labels: graph, node, status.
//  3. node_failures_total (counter): recovered node failures. Labels: graph, node, code.
//  4. routing_decisions_total (counter): targets chosen by conditional nodes. Labels: graph, node, target.
//  5. runs_total (counter): finished runs. Labels: graph, outcome.
//
// Labels use the graph name rather than run IDs to keep cardinality bounded.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	b := graph.New(graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type PrometheusMetrics struct {
	activeRuns   *prometheus.GaugeVec
	stepLatency  *prometheus.HistogramVec
	nodeFailures *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	runs         *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers the graph metrics with registry.
// A nil registry selects prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		activeRuns: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "teamgraph",
			Name:      "active_runs",
			Help:      "Number of runs currently executing",
		}, []string{"graph"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teamgraph",
			Name:      "step_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"graph", "node", "status"}),
		nodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamgraph",
			Name:      "node_failures_total",
			Help:      "Node failures recovered at the node boundary",
		}, []string{"graph", "node", "code"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamgraph",
			Name:      "routing_decisions_total",
			Help:      "Targets selected by conditional nodes",
		}, []string{"graph", "node", "target"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamgraph",
			Name:      "runs_total",
			Help:      "Completed runs by outcome",
		}, []string{"graph", "outcome"}),
	}
}

func (pm *PrometheusMetrics) on() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordStepLatency observes the duration of a node invocation.
// Status is one of "success", "error" or "timeout".
func (pm *PrometheusMetrics) RecordStepLatency(graphName, node string, latency time.Duration, status string) {
	if !pm.on() {
		return
	}
	pm.stepLatency.WithLabelValues(graphName, node, status).Observe(float64(latency.Milliseconds()))
}

// IncrementNodeFailures counts a failure recovered at a node boundary.
func (pm *PrometheusMetrics) IncrementNodeFailures(graphName, node, code string) {
	if !pm.on() {
		return
	}
	pm.nodeFailures.WithLabelValues(graphName, node, code).Inc()
}

// RecordDecision counts a routing decision taken by a conditional node.
func (pm *PrometheusMetrics) RecordDecision(graphName, node, target string) {
	if !pm.on() {
		return
	}
	pm.decisions.WithLabelValues(graphName, node, target).Inc()
}

// RunStarted increments the active run gauge.
func (pm *PrometheusMetrics) RunStarted(graphName string) {
	if !pm.on() {
		return
	}
	pm.activeRuns.WithLabelValues(graphName).Inc()
}

// RunFinished decrements the active run gauge and counts the outcome.
func (pm *PrometheusMetrics) RunFinished(graphName, outcome string) {
	if !pm.on() {
		return
	}
	pm.activeRuns.WithLabelValues(graphName).Dec()
	pm.runs.WithLabelValues(graphName, outcome).Inc()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset zeroes the active run gauge. Counters and histograms are cumulative.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.activeRuns.Reset()
}
