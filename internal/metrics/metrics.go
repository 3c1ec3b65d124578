// Package metrics holds the counters of one conversion run. A run is a batch job, so the
// registry is written once to a node-exporter textfile instead of being scraped.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Rewrite outcomes.
const (
	OutcomeRewritten  = "rewritten"
	OutcomeUnchanged  = "unchanged"
	OutcomeUnresolved = "unresolved"
)

// Sources of written rows.
const (
	SourceDelta   = "delta"
	SourcePending = "pending"
)

// Run is the metric set of one session.
type Run struct {
	registry *prometheus.Registry

	RowsRead       *prometheus.CounterVec
	RowsWritten    *prometheus.CounterVec
	OWLRewrites    *prometheus.CounterVec
	PendingRows    prometheus.Gauge
	NumberConcepts prometheus.Gauge
	NumericValues  prometheus.Gauge
}

// NewRun creates the metrics on a fresh registry.
func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdconv_rows_read_total",
			Help: "RF2 rows read, by pass and file family",
		}, []string{"pass", "family"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdconv_rows_written_total",
			Help: "Rows written to the output delta, by source",
		}, []string{"source"}),
		OWLRewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdconv_owl_rewrites_total",
			Help: "Active OWL expressions seen in pass three, by outcome",
		}, []string{"outcome"}),
		PendingRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cdconv_pending_rows",
			Help: "Rewritten snapshot rows waiting for finalize",
		}),
		NumberConcepts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cdconv_number_concepts",
			Help: "Concepts found to be children of Number",
		}),
		NumericValues: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cdconv_numeric_values",
			Help: "Number concepts with a resolved numeric value",
		}),
	}
	r.registry.MustRegister(
		r.RowsRead,
		r.RowsWritten,
		r.OWLRewrites,
		r.PendingRows,
		r.NumberConcepts,
		r.NumericValues,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Run) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
