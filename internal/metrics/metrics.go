package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullpen_orders_placed_total",
		Help: "Orders processed by terminal status.",
	}, []string{"status", "side"})

	OrderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullpen_order_rejections_total",
		Help: "Persisted order rejections by reason.",
	}, []string{"reason"})

	BudgetOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullpen_budget_operations_total",
		Help: "Budget ledger operations by type and idempotent-replay flag.",
	}, []string{"operation", "idempotent"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullpen_settlements_total",
		Help: "Room settlements by outcome.",
	}, []string{"outcome"})

	StarAwards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullpen_star_awards_total",
		Help: "Achievement awards by reason code.",
	}, []string{"reason"})

	QuoteCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullpen_quote_cache_total",
		Help: "Quote cache lookups by result.",
	}, []string{"result"})

	OrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bullpen_order_execution_seconds",
		Help:    "Wall time of order execution transactions.",
		Buckets: prometheus.DefBuckets,
	})
)
