package emseq

import "time"

// Metrics provides observability for sequence operations. Nil disables
// collection; the Prometheus implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	RecordOpen(kind string)
	RecordClose(kind string)
	ObserveGet(d time.Duration)
	ObserveSet(d time.Duration)
	ObserveAppend(d time.Duration)

	// RecordResize records a completed capacity doubling.
	RecordResize(d time.Duration, capacity uint64)
}
