// Package prometheus implements the emstore metrics interfaces on top of
// the shared registry in pkg/metrics.
//
// Import it for side effects alongside the rest of the module:
//
//	import _ "github.com/marmos91/emstore/pkg/metrics/prometheus"
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/emstore/pkg/emmap"
	"github.com/marmos91/emstore/pkg/emseq"
	"github.com/marmos91/emstore/pkg/mapped"
	"github.com/marmos91/emstore/pkg/metrics"
)

func init() {
	metrics.RegisterAllocatorMetricsConstructor(newAllocatorMetrics)
	metrics.RegisterMapMetricsConstructor(newMapMetrics)
	metrics.RegisterSeqMetricsConstructor(newSeqMetrics)
}

// opDurationBuckets covers mapped-memory operations: most complete in
// microseconds, page faults and growth push the tail into milliseconds.
var opDurationBuckets = []float64{
	0.001, // 1us
	0.01,  // 10us
	0.1,   // 100us
	1,     // 1ms
	10,    // 10ms
	100,   // 100ms
	1000,  // 1s
}

// allocatorMetrics is the Prometheus implementation of mapped.Metrics.
type allocatorMetrics struct {
	allocations *prometheus.CounterVec
	allocBytes  *prometheus.CounterVec
	frees       prometheus.Counter
	freedBytes  prometheus.Counter
	growths     prometheus.Counter
}

func newAllocatorMetrics() mapped.Metrics {
	reg := metrics.GetRegistry()

	return &allocatorMetrics{
		allocations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "emstore_alloc_chunks_total",
				Help: "Total number of chunk allocations by source",
			},
			[]string{"source"}, // "append", "reuse"
		),
		allocBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "emstore_alloc_bytes_total",
				Help: "Total bytes handed out by the chunk allocator by source",
			},
			[]string{"source"},
		),
		frees: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "emstore_freed_chunks_total",
				Help: "Total number of chunks returned to the free list",
			},
		),
		freedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "emstore_freed_bytes_total",
				Help: "Total bytes returned to the free list",
			},
		),
		growths: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "emstore_file_growths_total",
				Help: "Total number of mapped file growths",
			},
		),
	}
}

func (m *allocatorMetrics) RecordAlloc(bytes uint64, reused bool) {
	source := "append"
	if reused {
		source = "reuse"
	}
	m.allocations.WithLabelValues(source).Inc()
	m.allocBytes.WithLabelValues(source).Add(float64(bytes))
}

func (m *allocatorMetrics) RecordFree(bytes uint64) {
	m.frees.Inc()
	m.freedBytes.Add(float64(bytes))
}

func (m *allocatorMetrics) RecordGrow(_ string, _ uint64) {
	m.growths.Inc()
}

// containerMetrics carries the gauges shared by both container kinds.
type containerMetrics struct {
	opens *prometheus.GaugeVec
	gets  prometheus.Histogram
	sets  prometheus.Histogram
}

func newContainerMetrics(kind string) containerMetrics {
	reg := metrics.GetRegistry()

	return containerMetrics{
		opens: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "emstore_" + kind + "_open_containers",
				Help: "Number of currently open " + kind + " containers",
			},
			[]string{"kind"},
		),
		gets: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emstore_" + kind + "_get_duration_milliseconds",
				Help:    "Duration of " + kind + " get operations in milliseconds",
				Buckets: opDurationBuckets,
			},
		),
		sets: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emstore_" + kind + "_set_duration_milliseconds",
				Help:    "Duration of " + kind + " set operations in milliseconds",
				Buckets: opDurationBuckets,
			},
		),
	}
}

func (m *containerMetrics) RecordOpen(kind string) {
	m.opens.WithLabelValues(kind).Inc()
}

func (m *containerMetrics) RecordClose(kind string) {
	m.opens.WithLabelValues(kind).Dec()
}

func (m *containerMetrics) ObserveGet(d time.Duration) {
	m.gets.Observe(ms(d))
}

func (m *containerMetrics) ObserveSet(d time.Duration) {
	m.sets.Observe(ms(d))
}

// mapMetrics is the Prometheus implementation of emmap.Metrics.
type mapMetrics struct {
	containerMetrics
	rehashes       prometheus.Counter
	rehashDuration prometheus.Histogram
	tableSlots     prometheus.Gauge
}

func newMapMetrics() emmap.Metrics {
	reg := metrics.GetRegistry()

	return &mapMetrics{
		containerMetrics: newContainerMetrics("map"),
		rehashes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "emstore_map_rehashes_total",
				Help: "Total number of hash table rehashes",
			},
		),
		rehashDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emstore_map_rehash_duration_milliseconds",
				Help:    "Duration of hash table rehashes in milliseconds",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
		),
		tableSlots: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "emstore_map_table_slots",
				Help: "Slot count of the most recently rehashed table",
			},
		),
	}
}

func (m *mapMetrics) RecordRehash(d time.Duration, slots uint64) {
	m.rehashes.Inc()
	m.rehashDuration.Observe(ms(d))
	m.tableSlots.Set(float64(slots))
}

// seqMetrics is the Prometheus implementation of emseq.Metrics.
type seqMetrics struct {
	containerMetrics
	appends  prometheus.Histogram
	resizes  prometheus.Counter
	capacity prometheus.Gauge
}

func newSeqMetrics() emseq.Metrics {
	reg := metrics.GetRegistry()

	return &seqMetrics{
		containerMetrics: newContainerMetrics("seq"),
		appends: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emstore_seq_append_duration_milliseconds",
				Help:    "Duration of sequence appends in milliseconds",
				Buckets: opDurationBuckets,
			},
		),
		resizes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "emstore_seq_resizes_total",
				Help: "Total number of sequence capacity doublings",
			},
		),
		capacity: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "emstore_seq_capacity_slots",
				Help: "Capacity of the most recently resized sequence",
			},
		),
	}
}

func (m *seqMetrics) ObserveAppend(d time.Duration) {
	m.appends.Observe(ms(d))
}

func (m *seqMetrics) RecordResize(d time.Duration, capacity uint64) {
	m.resizes.Inc()
	m.capacity.Set(float64(capacity))
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
