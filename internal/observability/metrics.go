package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crabber_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// FeedQueryLatency records how long materialising a listing takes.
	FeedQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crabber_feed_query_latency_seconds",
		Help:    "Latency of feed materialisation by listing",
		Buckets: prometheus.DefBuckets,
	}, []string{"listing"})

	// NotificationsCreated counts notifications actually written, by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crabber_notifications_created_total",
		Help: "Notifications written by type",
	}, []string{"type"})

	// CardFetches counts card fetch outcomes.
	CardFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crabber_card_fetches_total",
		Help: "Card fetch attempts by result (ready or failed)",
	}, []string{"result"})

	// CardWorkerRuns counts worker invocations by outcome.
	CardWorkerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crabber_card_worker_runs_total",
		Help: "Card worker runs by outcome (completed, skipped, error)",
	}, []string{"outcome"})

	// RateLimitRejections counts requests refused by the Redis rate limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crabber_rate_limit_rejections_total",
		Help: "Requests rejected by rate limit name",
	}, []string{"limit"})
)

// TrackFeedQuery returns a function that records the listing latency when called (e.g. defer).
func TrackFeedQuery(listing string) func() {
	start := time.Now()
	return func() {
		FeedQueryLatency.WithLabelValues(listing).Observe(time.Since(start).Seconds())
	}
}
