package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aux_queue_length",
			Help: "Current aux queue length per station",
		},
		[]string{"station_id"},
	)

	auxOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aux_operations_total",
			Help: "Total aux operations by outcome",
		},
		[]string{"operation", "status"},
	)

	auxRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aux_rotations_total",
			Help: "Holder changes by cause",
		},
		[]string{"reason"},
	)

	casConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aux_cas_conflicts_total",
			Help: "Optimistic concurrency conflicts observed while committing",
		},
		[]string{"operation"},
	)

	oracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aux_oracle_request_duration_seconds",
			Help:    "Duration of balance oracle lookups",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"outcome"},
	)
)

type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Track aux operations
func (m *Monitor) TrackOperation(operation, status string) {
	auxOperations.WithLabelValues(operation, status).Inc()
}

func (m *Monitor) TrackRotation(reason string) {
	auxRotations.WithLabelValues(reason).Inc()
}

func (m *Monitor) TrackConflict(operation string) {
	casConflicts.WithLabelValues(operation).Inc()
}

func (m *Monitor) SetQueueLength(stationID string, length int) {
	queueLength.WithLabelValues(stationID).Set(float64(length))
}

// Track balance oracle latency
func (m *Monitor) TrackOracle(outcome string, duration time.Duration) {
	oracleDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
