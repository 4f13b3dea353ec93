package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type EscrowMetrics struct {
	operations         *prometheus.CounterVec
	fundingTransitions *prometheus.CounterVec
	settlements        *prometheus.CounterVec
	listenerTicks      *prometheus.CounterVec
	listenerTickTime   prometheus.Histogram
	settlementQueue    prometheus.Gauge
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_operations_total",
				Help: "Count of escrow operations by name and result kind.",
			}, []string{"operation", "result"}),
			fundingTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_funding_transitions_total",
				Help: "Count of funding workflows reaching a terminal status.",
			}, []string{"status"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_settlement_requests_total",
				Help: "Count of settlement requests by delivery result.",
			}, []string{"result"}),
			listenerTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_funding_listener_actions_total",
				Help: "Count of actions taken by the funding listener.",
			}, []string{"action"}),
			listenerTickTime: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "escrow_funding_listener_tick_seconds",
				Help:    "Duration of one funding listener poll.",
				Buckets: prometheus.DefBuckets,
			}),
			settlementQueue: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "escrow_settlement_queue_depth",
				Help: "Settlement requests waiting for delivery.",
			}),
		}
		prometheus.MustRegister(
			escrowRegistry.operations,
			escrowRegistry.fundingTransitions,
			escrowRegistry.settlements,
			escrowRegistry.listenerTicks,
			escrowRegistry.listenerTickTime,
			escrowRegistry.settlementQueue,
		)
	})
	return escrowRegistry
}

func (m *EscrowMetrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *EscrowMetrics) ObserveFundingTransition(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.fundingTransitions.WithLabelValues(status).Inc()
}

func (m *EscrowMetrics) ObserveSettlement(result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(result).Inc()
}

func (m *EscrowMetrics) ObserveListenerAction(action string) {
	if m == nil {
		return
	}
	m.listenerTicks.WithLabelValues(action).Inc()
}

func (m *EscrowMetrics) ObserveListenerTick(d time.Duration) {
	if m == nil {
		return
	}
	m.listenerTickTime.Observe(d.Seconds())
}

func (m *EscrowMetrics) SetSettlementQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.settlementQueue.Set(float64(depth))
}
