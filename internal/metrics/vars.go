package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TierAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_route_tier_attempts_total",
		Help: "Route tier attempts by outcome (quoted, unavailable, timeout, error)",
	}, []string{"tier", "outcome"})

	TierLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swap_route_tier_latency_seconds",
		Help:    "Time spent quoting one route tier",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier"})

	RoutesSelected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_route_selected_total",
		Help: "Quotes returned, by winning tier",
	}, []string{"tier"})

	NoRouteFound = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swap_route_no_route_total",
		Help: "Requests where every tier failed",
	})

	RecommendedSlippage = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swap_recommended_slippage_percent",
		Help:    "Slippage tolerance recommended for returned quotes",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 2, 5},
	})

	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_api_requests_total",
		Help: "API requests by endpoint and status code",
	}, []string{"endpoint", "code"})
)

func init() {
	prometheus.MustRegister(
		TierAttempts,
		TierLatency,
		RoutesSelected,
		NoRouteFound,
		RecommendedSlippage,
		APIRequests,
	)
}
