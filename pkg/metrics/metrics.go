// Package metrics exposes the service's prometheus instruments.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "splitledger_"

var (
	registerOnce sync.Once

	computationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "balance_computations_total",
			Help: "Balance computations by mode and result",
		},
		[]string{"mode", "result"},
	)
	computationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "balance_computation_latency_seconds",
			Help:    "Balance computation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
	settlementWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "settlement_writes_total",
			Help: "Per-group settlement writes by result",
		},
		[]string{"result"},
	)
)

// Register registers the instruments with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			computationsTotal,
			computationLatency,
			settlementWritesTotal,
		)
	})
}

// ComputationObserved records one balance computation.
func ComputationObserved(mode, result string, elapsed time.Duration) {
	computationsTotal.WithLabelValues(mode, result).Inc()
	computationLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// SettlementWriteObserved records one per-group settlement write.
func SettlementWriteObserved(result string) {
	settlementWritesTotal.WithLabelValues(result).Inc()
}
