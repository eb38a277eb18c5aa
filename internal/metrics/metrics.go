// Package metrics defines the Prometheus collectors reported by the index
// builder, the fetch cache and the search service. All recording methods are
// safe to call on a nil *Metrics, which disables reporting.
package metrics

import (
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "imgsearch"

// Fetch outcomes.
const (
	FetchHit   = "hit"
	FetchMiss  = "miss"
	FetchError = "error"
)

// Build row outcomes.
const (
	RowIndexed = "indexed"
	RowSkipped = "skipped"
)

// Metrics groups every collector exported by the process.
type Metrics struct {
	FetchTotal     *prometheus.CounterVec
	BuildRows      *prometheus.CounterVec
	SearchTotal    *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	IndexEntries   prometheus.Gauge
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Image resolutions by outcome (hit, miss, error)",
			},
			[]string{"result"},
		),
		BuildRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "build",
				Name:      "rows_total",
				Help:      "Catalog rows processed by the index builder",
			},
			[]string{"outcome"},
		),
		SearchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "requests_total",
				Help:      "Search requests by status (ok or error kind)",
			},
			[]string{"status"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "duration_seconds",
				Help:      "End-to-end search latency including preprocessing and embedding",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		IndexEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "entries",
				Help:      "Number of entries in the loaded index",
			},
		),
	}
}

// Register adds all collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.FetchTotal, m.BuildRows, m.SearchTotal, m.SearchDuration, m.IndexEntries} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Fetch(result string) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) BuildRow(outcome string) {
	if m == nil {
		return
	}
	m.BuildRows.WithLabelValues(outcome).Inc()
}

// Search records one finished search. status is "ok" or an error kind.
func (m *Metrics) Search(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchTotal.WithLabelValues(status).Inc()
	m.SearchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetIndexEntries(n int) {
	if m == nil {
		return
	}
	m.IndexEntries.Set(float64(n))
}

// Counts returns the fetch and build counters keyed "<subsystem>_<label>",
// e.g. "fetch_hit" or "build_indexed".
func (m *Metrics) Counts() (map[string]float64, error) {
	out := map[string]float64{}
	if m == nil {
		return out, nil
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(m.FetchTotal); err != nil {
		return nil, err
	}
	if err := reg.Register(m.BuildRows); err != nil {
		return nil, err
	}
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}
	prefix := map[string]string{
		namespace + "_fetch_requests_total": "fetch_",
		namespace + "_build_rows_total":     "build_",
	}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				out[prefix[f.GetName()]+l.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	return out, nil
}

// LogArgs flattens counts into sorted slog key/value pairs.
func LogArgs(counts map[string]float64) []any {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, counts[k])
	}
	return args
}
