package sink

import (
	"context"
	"net/http"
	"sync"

	"nathanbeddoewebdev/cloudharvest/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes harvested samples and harvester self-metrics to
// Prometheus. It is both a Sink and a harvest.Observer.
type Exporter struct {
	registry *prometheus.Registry

	SampleValue  *prometheus.GaugeVec
	SampleTime   *prometheus.GaugeVec
	PassesTotal  *prometheus.CounterVec
	PassDuration *prometheus.HistogramVec
	PassRecords  *prometheus.GaugeVec
	QueriesTotal *prometheus.CounterVec
	WindowEnd    *prometheus.GaugeVec

	// Sample series written during the running pass of each kind, and those
	// exported after the last successful one. Series absent from a
	// successful pass are deleted so vanished resources stop exporting.
	mu      sync.Mutex
	pending map[domain.ResourceKind]map[seriesKey]struct{}
	live    map[domain.ResourceKind]map[seriesKey]struct{}
}

type seriesKey struct {
	subject, metric, unit string
}

// NewExporter registers the collectors on a fresh registry under namespace.
func NewExporter(namespace string) *Exporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Exporter{
		registry: reg,
		pending:  map[domain.ResourceKind]map[seriesKey]struct{}{},
		live:     map[domain.ResourceKind]map[seriesKey]struct{}{},
		SampleValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sample_value",
				Help:      "Latest harvested sample value per subject and metric",
			},
			[]string{"kind", "subject", "metric", "unit"},
		),
		SampleTime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sample_timestamp_seconds",
				Help:      "Unix time of the latest harvested sample per subject and metric",
			},
			[]string{"kind", "subject", "metric"},
		),
		PassesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Harvesting passes by kind and result (success/failure)",
			},
			[]string{"kind", "result"},
		),
		PassDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Duration of harvesting passes in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		PassRecords: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pass_records",
				Help:      "Records produced by the latest pass of each kind",
			},
			[]string{"kind"},
		),
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Metric queries by kind and result (success/failure)",
			},
			[]string{"kind", "result"},
		),
		WindowEnd: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "window_end_seconds",
				Help:      "Unix time of the window end used by the latest pass",
			},
			[]string{"kind"},
		),
	}
}

// Registry returns the registry holding the exporter's collectors.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Write records the latest present sample of rec. Failed and empty
// records leave the previous value in place; their subject still counts as
// present for the pass.
func (e *Exporter) Write(_ context.Context, rec domain.Record) error {
	e.mu.Lock()
	seen := e.pending[rec.Kind]
	if seen == nil {
		seen = map[seriesKey]struct{}{}
		e.pending[rec.Kind] = seen
	}
	seen[seriesKey{rec.Subject, rec.Metric, string(rec.Unit)}] = struct{}{}
	e.mu.Unlock()

	if rec.Failed() {
		return nil
	}
	v, ok := rec.Series.Latest()
	if !ok {
		return nil
	}
	e.SampleValue.WithLabelValues(string(rec.Kind), rec.Subject, rec.Metric, string(rec.Unit)).Set(v)
	for i := len(rec.Series.Samples) - 1; i >= 0; i-- {
		if s := rec.Series.Samples[i]; s.Value != nil {
			e.SampleTime.WithLabelValues(string(rec.Kind), rec.Subject, rec.Metric).Set(float64(s.Time.Unix()))
			break
		}
	}
	return nil
}

func (e *Exporter) Close() error { return nil }

// ObserveQuery counts one query outcome.
func (e *Exporter) ObserveQuery(kind domain.ResourceKind, failed bool) {
	e.QueriesTotal.WithLabelValues(string(kind), result(failed)).Inc()
}

// ObservePass records a finished pass. After a successful pass the sample
// series of subjects it no longer reported are removed; a failed pass
// keeps the previous series.
func (e *Exporter) ObservePass(r domain.PassResult) {
	e.expire(r.Kind, r.Err == nil)

	kind := string(r.Kind)
	e.PassesTotal.WithLabelValues(kind, result(r.Err != nil)).Inc()
	e.PassDuration.WithLabelValues(kind).Observe(r.Duration.Seconds())
	e.PassRecords.WithLabelValues(kind).Set(float64(len(r.Records)))
	if !r.Window.End.IsZero() {
		e.WindowEnd.WithLabelValues(kind).Set(float64(r.Window.End.Unix()))
	}
}

func (e *Exporter) expire(kind domain.ResourceKind, succeeded bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := e.pending[kind]
	delete(e.pending, kind)
	if !succeeded {
		for k := range seen {
			if e.live[kind] == nil {
				e.live[kind] = map[seriesKey]struct{}{}
			}
			e.live[kind][k] = struct{}{}
		}
		return
	}

	for k := range e.live[kind] {
		if _, ok := seen[k]; ok {
			continue
		}
		e.SampleValue.DeleteLabelValues(string(kind), k.subject, k.metric, k.unit)
		e.SampleTime.DeleteLabelValues(string(kind), k.subject, k.metric)
	}
	if seen == nil {
		seen = map[seriesKey]struct{}{}
	}
	e.live[kind] = seen
}

func result(failed bool) string {
	if failed {
		return "failure"
	}
	return "success"
}
