package metrics

import (
	"github.com/marmos91/emstore/pkg/emmap"
	"github.com/marmos91/emstore/pkg/emseq"
	"github.com/marmos91/emstore/pkg/mapped"
)

// NewAllocatorMetrics returns a Prometheus-backed mapped.Metrics, or nil
// when metrics are disabled (InitRegistry not called). A nil result passed
// to mapped.File.SetMetrics keeps collection disabled with zero overhead.
func NewAllocatorMetrics() mapped.Metrics {
	if !IsEnabled() || newPrometheusAllocatorMetrics == nil {
		return nil
	}
	return newPrometheusAllocatorMetrics()
}

// NewMapMetrics returns a Prometheus-backed emmap.Metrics, or nil when
// metrics are disabled.
func NewMapMetrics() emmap.Metrics {
	if !IsEnabled() || newPrometheusMapMetrics == nil {
		return nil
	}
	return newPrometheusMapMetrics()
}

// NewSeqMetrics returns a Prometheus-backed emseq.Metrics, or nil when
// metrics are disabled.
func NewSeqMetrics() emseq.Metrics {
	if !IsEnabled() || newPrometheusSeqMetrics == nil {
		return nil
	}
	return newPrometheusSeqMetrics()
}

// The constructors below are implemented in pkg/metrics/prometheus and
// registered during its package initialization. The indirection avoids an
// import cycle while keeping the API in one place.
var (
	newPrometheusAllocatorMetrics func() mapped.Metrics
	newPrometheusMapMetrics       func() emmap.Metrics
	newPrometheusSeqMetrics       func() emseq.Metrics
)

// RegisterAllocatorMetricsConstructor is called by pkg/metrics/prometheus.
func RegisterAllocatorMetricsConstructor(constructor func() mapped.Metrics) {
	newPrometheusAllocatorMetrics = constructor
}

// RegisterMapMetricsConstructor is called by pkg/metrics/prometheus.
func RegisterMapMetricsConstructor(constructor func() emmap.Metrics) {
	newPrometheusMapMetrics = constructor
}

// RegisterSeqMetricsConstructor is called by pkg/metrics/prometheus.
func RegisterSeqMetricsConstructor(constructor func() emseq.Metrics) {
	newPrometheusSeqMetrics = constructor
}
