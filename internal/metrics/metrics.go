// Package metrics defines the Prometheus metrics exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mithai"

// PurchasesTotal counts single-item purchase attempts.
// Label result: "ok", "insufficient_stock", "not_found", "invalid_amount", "error".
var PurchasesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purchases_total",
		Help:      "Purchase attempts by outcome.",
	},
	[]string{"result"},
)

// UnitsSoldTotal counts units removed from stock by purchases and checkouts.
var UnitsSoldTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_sold_total",
		Help:      "Units of stock sold.",
	},
)

// RestocksTotal counts restock attempts by outcome.
var RestocksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "restocks_total",
		Help:      "Restock attempts by outcome.",
	},
	[]string{"result"},
)

// CheckoutsTotal counts multi-item checkouts by outcome.
var CheckoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	},
	[]string{"result"},
)

// EventPublishFailures counts inventory events the broker did not accept.
var EventPublishFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "Inventory events that failed to publish.",
	},
)

// IdempotentReplaysTotal counts responses served from the idempotency store.
var IdempotentReplaysTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotent_replays_total",
		Help:      "Responses replayed for a repeated Idempotency-Key.",
	},
)
