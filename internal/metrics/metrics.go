package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Finalizations counts finalization attempts by media type and outcome
	// (created, existing, not_ready, failed, error).
	Finalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_finalizations_total",
			Help: "Total number of finalization attempts by media type and outcome",
		},
		[]string{"media_type", "outcome"},
	)

	// WebhookEvents counts transcoding webhook deliveries by result.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_webhook_events_total",
			Help: "Total number of transcoding webhook deliveries by result",
		},
		[]string{"result"},
	)

	// ReconciledJobs counts jobs handled by the reconcile loop by outcome
	// (finalized, dropped, pending, error).
	ReconciledJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_reconciled_jobs_total",
			Help: "Total number of video jobs checked by the reconcile loop",
		},
		[]string{"outcome"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"action"},
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_upstream_retries_total",
			Help: "Total number of retried upstream calls by operation",
		},
		[]string{"operation"},
	)

	// UpstreamLatency tracks a whole retried upstream call, not each attempt.
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_upstream_latency_seconds",
			Help:    "Latency of upstream calls including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
