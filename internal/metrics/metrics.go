package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Graph metrics
	PoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swap_router_pools",
		Help: "Number of wells registered in the token graph",
	})

	TokenCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swap_router_tokens",
		Help: "Number of tokens in the token graph",
	})

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_router_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"direction", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_router_quote_duration_seconds",
			Help:    "Time spent chaining hop quotes and building the plan",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"direction"},
	)

	RouteHops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_router_route_hops",
		Help:    "Hop count of routes returned by the path finder",
		Buckets: []float64{1, 2, 3, 4, 5, 6},
	})

	NoRoute = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_router_no_route_total",
		Help: "Total number of route requests with no connecting path",
	})

	GasEstimateFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_router_gas_estimate_failures_total",
			Help: "Gas estimations that failed and were recorded as zero",
		},
		[]string{"scope"},
	)

	// Price cache metrics
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_router_price_cache_hits_total",
		Help: "Total number of price cache hits",
	})

	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_router_price_cache_misses_total",
		Help: "Total number of price cache misses",
	})

	// Settlement metrics
	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_router_transactions_sent_total",
			Help: "Transactions handed to the node, by kind and status",
		},
		[]string{"kind", "status"},
	)

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_router_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)
