// Package metrics holds the Prometheus collectors of the API.
// Collectors register on the default registry and are exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled requests by method, route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodgram_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foodgram_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// IngredientRecordsTotal counts catalog loader records by outcome (inserted, skipped, failed).
	IngredientRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodgram_ingredient_records_total",
			Help: "Ingredient catalog records processed by the loader",
		},
		[]string{"outcome"},
	)

	// ShoppingListsTotal counts generated shopping lists by export format.
	ShoppingListsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodgram_shopping_lists_total",
			Help: "Shopping lists generated",
		},
		[]string{"format"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodgram_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// ShoppingConsistencyFaultsTotal counts cart entries pointing at recipes that no longer exist.
	ShoppingConsistencyFaultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodgram_shopping_consistency_faults_total",
			Help: "Missing recipes encountered while aggregating shopping lists",
		},
	)
)
