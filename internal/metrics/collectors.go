// Package metrics holds the prometheus collectors of a parser manager and
// summary statistics over a token tree.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cccomplete"

// Collectors are registered on one manager's private registry, so several
// managers in one process never collide.
type Collectors struct {
	Registry *prometheus.Registry

	parses        *prometheus.CounterVec
	parseDuration prometheus.Histogram
	tokensMerged  prometheus.Counter
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	queueDepth    prometheus.Gauge
	treeTokens    prometheus.Gauge
	events        *prometheus.CounterVec
}

// NewCollectors creates the collectors and registers them on reg. A nil reg
// gets a fresh registry.
func NewCollectors(reg *prometheus.Registry) *Collectors {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collectors{
		Registry: reg,
		// result: parsed, skipped (unchanged fingerprint), removed, aborted, failed
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "files_total",
			Help:      "Parse jobs by result",
		}, []string{"result"}),
		parseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "parser",
			Name:      "duration_seconds",
			Help:      "Time to parse and commit one file",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		tokensMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "tokens_inserted_total",
			Help:      "Tokens inserted into the shared tree",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "queries_total",
			Help:      "Completion queries by kind and outcome",
		}, []string{"kind", "outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "query_duration_seconds",
			Help:      "Time to answer one query",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "pending_files",
			Help:      "Files waiting in the parse queue",
		}),
		treeTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "tokens",
			Help:      "Live tokens in the shared tree",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "events_total",
			Help:      "Editor and watcher events by type",
		}, []string{"event"}),
	}
	reg.MustRegister(c.parses, c.parseDuration, c.tokensMerged, c.queries,
		c.queryDuration, c.queueDepth, c.treeTokens, c.events)
	return c
}

// Parse result labels.
const (
	ResultParsed  = "parsed"
	ResultSkipped = "skipped"
	ResultRemoved = "removed"
	ResultAborted = "aborted"
	ResultFailed  = "failed"
)

// RecordParse records one finished parse job.
func (c *Collectors) RecordParse(result string, inserted int, d time.Duration) {
	if c == nil {
		return
	}
	c.parses.WithLabelValues(result).Inc()
	if result == ResultParsed {
		c.parseDuration.Observe(d.Seconds())
		c.tokensMerged.Add(float64(inserted))
	}
}

// RecordQuery records one resolver query. outcome is "hit" when the query
// produced results and "miss" otherwise.
func (c *Collectors) RecordQuery(kind string, results int, d time.Duration) {
	if c == nil {
		return
	}
	outcome := "miss"
	if results > 0 {
		outcome = "hit"
	}
	c.queries.WithLabelValues(kind, outcome).Inc()
	c.queryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordEvent counts an editor or watcher event.
func (c *Collectors) RecordEvent(event string) {
	if c == nil {
		return
	}
	c.events.WithLabelValues(event).Inc()
}

// SetQueueDepth publishes the pending parse count.
func (c *Collectors) SetQueueDepth(n int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(n))
}

// SetTreeTokens publishes the live token count.
func (c *Collectors) SetTreeTokens(n int) {
	if c == nil {
		return
	}
	c.treeTokens.Set(float64(n))
}
