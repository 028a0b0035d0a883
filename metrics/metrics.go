// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics holds the Prometheus collectors of the order queue, the
// executor and the oracles.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "twap"

// Outcome labels of executed orders.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeRetained = "retained"
)

// Metrics is a set of collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	OrdersEnqueued *prometheus.CounterVec
	OrdersExecuted *prometheus.CounterVec
	RefundFailures *prometheus.CounterVec
	GasSpent       prometheus.Histogram
	ExecuteLatency prometheus.Histogram
	QueueDepth     prometheus.Gauge
	OracleUpdates  *prometheus.CounterVec
	OraclePrice    *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		OrdersEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "orders_enqueued_total",
			Help:      "Orders accepted into the delay queue by kind",
		}, []string{"kind"}),
		OrdersExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "orders_executed_total",
			Help:      "Orders processed by the executor by kind and outcome",
		}, []string{"kind", "outcome"}),
		RefundFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "refund_failures_total",
			Help:      "Refunds that could not be delivered by asset",
		}, []string{"asset"}),
		GasSpent: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "gas_spent",
			Help:      "Metered gas per executed order",
			Buckets:   prometheus.ExponentialBuckets(1_000, 2, 12),
		}),
		ExecuteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "execute_duration_seconds",
			Help:      "Wall time of one Execute call",
			Buckets:   prometheus.DefBuckets,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "pending_orders",
			Help:      "Orders enqueued and not yet processed",
		}),
		OracleUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "updates_total",
			Help:      "Oracle admin and refresh operations by result",
		}, []string{"result"}),
		OraclePrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "price",
			Help:      "Last committed oracle price in whole units of token1 per token0",
		}, []string{"pair"}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExecution records one processed order.
func (m *Metrics) ObserveExecution(kind, outcome string, gas uint64, took time.Duration) {
	m.OrdersExecuted.WithLabelValues(kind, outcome).Inc()
	m.GasSpent.Observe(float64(gas))
	m.ExecuteLatency.Observe(took.Seconds())
}
