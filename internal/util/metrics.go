package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StockLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_lookups_total",
		Help: "Total number of item lookups by outcome",
	}, []string{"outcome"})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of stock adjustments by outcome",
	}, []string{"outcome"})

	StockAdjustmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_adjustment_latency_seconds",
		Help:    "Latency of stock adjustments including lock wait",
		Buckets: prometheus.DefBuckets,
	})

	HistoryQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_history_queries_total",
		Help: "Total number of history queries by outcome",
	}, []string{"outcome"})

	InventoryInconsistenciesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_inconsistencies_total",
		Help: "Adjustments or reconciliations that found stock and history out of step",
	})

	StockEventsPublishFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_events_publish_failed_total",
		Help: "Total number of STOCK_ADJUSTED events that could not be published",
	})

	KafkaMessageRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kafka_message_retries_total",
		Help: "Consumed messages whose handler failed and were handled again or given up on",
	})

	KafkaMessagesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kafka_messages_skipped_total",
		Help: "Consumed messages committed without handling because they could not be decoded",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
