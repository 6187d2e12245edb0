package mapped

// Metrics provides observability for the chunk allocator.
//
// Implementations must be safe to call with a nil receiver method set
// skipped by the caller; when no metrics are attached, collection has zero
// overhead. The Prometheus implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	// RecordAlloc records a chunk allocation. reused is true when the
	// chunk came from the free list rather than the end of the file.
	RecordAlloc(bytes uint64, reused bool)

	// RecordFree records a chunk being returned to the free list.
	RecordFree(bytes uint64)

	// RecordGrow records the mapping growing to newSize bytes.
	RecordGrow(path string, newSize uint64)
}
