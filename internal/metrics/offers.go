package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(providerSearchLatency, offersReceivedTotal, offersFilteredTotal, quotesExpiredTotal, cacheRequestsTotal)
}

var (
	providerSearchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_search_duration_seconds",
			Help:    "Flight provider search latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30},
		},
		[]string{"provider", "direction", "success"},
	)

	offersReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_received_total",
			Help: "Raw provider offers normalized, labeled by direction.",
		},
		[]string{"direction"},
	)

	offersFilteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_filtered_total",
			Help: "Normalized offers dropped by policy, labeled by reason.",
		},
		[]string{"reason"},
	)

	quotesExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quotes_expired_total",
			Help: "Quotes moved to Expired by the staleness sweep.",
		},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Redis cache lookups, labeled by cache and result.",
		},
		[]string{"cache", "result"}, // 'hit', 'miss'
	)
)

func ObserveProviderSearch(provider, direction string, seconds float64, success bool) {
	providerSearchLatency.WithLabelValues(norm(provider), norm(direction), boolLabel(success)).Observe(seconds)
}

func AddOffersReceived(direction string, n int) {
	offersReceivedTotal.WithLabelValues(norm(direction)).Add(float64(n))
}

func IncOfferFiltered(reason string) {
	offersFilteredTotal.WithLabelValues(norm(reason)).Inc()
}

func AddQuotesExpired(n int) {
	quotesExpiredTotal.Add(float64(n))
}

func IncCacheRequest(cache, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cache), norm(result)).Inc()
}
