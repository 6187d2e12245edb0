package emmap

import "time"

// Metrics provides observability for map operations. Nil disables
// collection; the Prometheus implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	RecordOpen(kind string)
	RecordClose(kind string)
	ObserveGet(d time.Duration)
	ObserveSet(d time.Duration)

	// RecordRehash records a completed table resize and its new slot count.
	RecordRehash(d time.Duration, slots uint64)
}
