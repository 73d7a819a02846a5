// Package metrics exposes search progress as Prometheus collectors.
//
// Collectors live on a private registry so that several searches in one
// process (tests, the harness) never collide on global registration.
// *Metrics satisfies engine.Observer and search.CandidateObserver.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sqlsynth"

// knownReasons bounds the label values of pruned_total.
var knownReasons = map[string]bool{
	"complexity": true,
	"depth":      true,
}

// knownOutcomes bounds the label values of candidates_total.
var knownOutcomes = map[string]bool{
	"accepted":   true,
	"rejected":   true,
	"eval_error": true,
}

// knownStatuses bounds the label values of searches_total.
var knownStatuses = map[string]bool{
	"found":         true,
	"exhausted":     true,
	"bound_reached": true,
	"failed":        true,
}

func sanitize(known map[string]bool, v string) string {
	if known[v] {
		return v
	}
	return "unknown"
}

// Metrics holds the search collectors.
//
// Thread Safety: all methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	popped       prometheus.Counter
	emitted      prometheus.Counter
	evicted      prometheus.Counter
	pruned       *prometheus.CounterVec
	frontier     prometheus.Gauge
	complexity   prometheus.Histogram
	candidates   *prometheus.CounterVec
	evalDuration prometheus.Histogram
	searches     *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		popped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enumerator",
			Name:      "popped_total",
			Help:      "Trees popped from the frontier",
		}),
		emitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enumerator",
			Name:      "emitted_total",
			Help:      "Complete trees emitted",
		}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enumerator",
			Name:      "evicted_total",
			Help:      "Trees evicted by the frontier limit",
		}),
		pruned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enumerator",
			Name:      "pruned_total",
			Help:      "Trees pruned by a bound, by bound",
		}, []string{"reason"}),
		frontier: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enumerator",
			Name:      "frontier_size",
			Help:      "Current number of trees in the frontier",
		}),
		complexity: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enumerator",
			Name:      "emitted_complexity",
			Help:      "Complexity of emitted trees",
			Buckets:   prometheus.LinearBuckets(0, 2, 16),
		}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "candidates_total",
			Help:      "Evaluated candidates by outcome",
		}, []string{"outcome"}),
		evalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "eval_duration_seconds",
			Help:      "Candidate evaluation latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "searches_total",
			Help:      "Finished searches by status",
		}, []string{"status"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TreePopped records a frontier pop.
func (m *Metrics) TreePopped(frontier int) {
	m.popped.Inc()
	m.frontier.Set(float64(frontier))
}

// TreeEmitted records a complete tree.
func (m *Metrics) TreeEmitted(complexity int) {
	m.emitted.Inc()
	m.complexity.Observe(float64(complexity))
}

// TreePruned records n trees cut by a bound.
func (m *Metrics) TreePruned(reason string, n int) {
	m.pruned.WithLabelValues(sanitize(knownReasons, reason)).Add(float64(n))
}

// TreesEvicted records frontier eviction.
func (m *Metrics) TreesEvicted(n int) {
	m.evicted.Add(float64(n))
}

// CandidateEvaluated records one candidate evaluation.
func (m *Metrics) CandidateEvaluated(outcome string, d time.Duration) {
	m.candidates.WithLabelValues(sanitize(knownOutcomes, outcome)).Inc()
	m.evalDuration.Observe(d.Seconds())
}

// SearchFinished records a search's terminal status.
func (m *Metrics) SearchFinished(status string) {
	m.searches.WithLabelValues(sanitize(knownStatuses, status)).Inc()
}
