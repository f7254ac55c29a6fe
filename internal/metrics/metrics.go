package metrics

import (
	"github.com/ZilDuck/marketplace-settlement/internal/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_operations_total",
		Help: "Total number of settlement operations by outcome",
	}, []string{"operation", "status"})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_errors_total",
		Help: "Total number of failed operations by error code",
	}, []string{"operation", "code"})

	FeesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_fees_collected_total",
		Help: "Fees collected, in the smallest unit of the rail",
	}, []string{"operation", "rail"})

	VolumeSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_volume_total",
		Help: "Amount moved by committed operations, in the smallest unit of the rail",
	}, []string{"operation", "rail"})

	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_operation_latency_seconds",
		Help:    "Latency of settlement operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ActionsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_actions_indexed_total",
		Help: "Total number of actions queued for the activity index",
	})

	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_messages_published_total",
		Help: "Total number of activity messages published by outcome",
	}, []string{"status"})

	SnapshotsSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_ledger_snapshots_total",
		Help: "Total number of ledger snapshots written by outcome",
	}, []string{"status"})

	SnapshotVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_ledger_snapshot_version",
		Help: "Ledger version of the last snapshot written",
	})
)

func NewOperationTimer(operation string) *prometheus.Timer {
	return prometheus.NewTimer(OperationLatency.WithLabelValues(operation))
}

func OperationCommitted(action entity.Action) {
	operation := string(action.Type)
	OperationsTotal.WithLabelValues(operation, "committed").Inc()

	rail := string(action.Rail)
	if rail == "" {
		return
	}
	VolumeSettled.WithLabelValues(operation, rail).Add(float64(action.Amount))
	FeesCollected.WithLabelValues(operation, rail).Add(float64(action.Fee))
}

func OperationFailed(operation, code string) {
	OperationsTotal.WithLabelValues(operation, "failed").Inc()
	ErrorsTotal.WithLabelValues(operation, code).Inc()
}
