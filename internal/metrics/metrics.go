// Package metrics holds Prometheus instrumentation for the trading backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the order and market data paths.
type Metrics struct {
	OrdersCreated        prometheus.Counter
	OrderTransitions     *prometheus.CounterVec // labels: to
	TransitionConflicts  prometheus.Counter
	TransitionRejected   prometheus.Counter
	PositionsCreated     prometheus.Counter
	AdvanceDuration      prometheus.Histogram
	SpotPollsTotal       prometheus.Counter
	SpotPollErrors       prometheus.Counter
	SpotPrice            *prometheus.GaugeVec // labels: metal
	PositionsRevalued    prometheus.Counter
	WSClientsConnected   prometheus.Gauge
	ArchivedOrdersTotal  prometheus.Counter
	ArchivedAuditEntries prometheus.Counter
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsphere_orders_created_total",
			Help: "Orders accepted and persisted",
		}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goldsphere_order_transitions_total",
			Help: "Successful lifecycle transitions (by resulting status)",
		}, []string{"to"}),
		TransitionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsphere_transition_conflicts_total",
			Help: "Lifecycle transitions lost to a concurrent advance",
		}),
		TransitionRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsphere_transition_rejected_total",
			Help: "Lifecycle transitions rejected on a terminal order",
		}),
		PositionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsphere_positions_created_total",
			Help: "Positions materialized on order delivery",
		}),
		AdvanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goldsphere_advance_duration_seconds",
			Help:    "Lifecycle transaction latency",
			Buckets: prometheus.DefBuckets,
		}),
		SpotPollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsphere_spot_polls_total",
			Help: "Spot price feed polls attempted",
		}),
		SpotPollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsphere_spot_poll_errors_total",
			Help: "Spot price feed polls that failed",
		}),
		SpotPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "goldsphere_spot_price_usd",
			Help: "Latest spot price per troy ounce (by metal)",
		}, []string{"metal"}),
		PositionsRevalued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsphere_positions_revalued_total",
			Help: "Active positions touched by market price refreshes",
		}),
		WSClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goldsphere_ws_clients_connected",
			Help: "WebSocket clients currently connected",
		}),
		ArchivedOrdersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsphere_archived_orders_total",
			Help: "Delivered orders exported to cold storage",
		}),
		ArchivedAuditEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldsphere_archived_audit_entries_total",
			Help: "Audit log entries exported to cold storage",
		}),
	}

	prometheus.MustRegister(
		m.OrdersCreated,
		m.OrderTransitions,
		m.TransitionConflicts,
		m.TransitionRejected,
		m.PositionsCreated,
		m.AdvanceDuration,
		m.SpotPollsTotal,
		m.SpotPollErrors,
		m.SpotPrice,
		m.PositionsRevalued,
		m.WSClientsConnected,
		m.ArchivedOrdersTotal,
		m.ArchivedAuditEntries,
	)

	return m
}
