package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "minihemis"

var (
	BotUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "updates_total", Help: "Processed telegram updates",
	})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "handler_errors_total", Help: "Handler errors",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})

	// Апстрим (HEMIS)
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "upstream_requests_total", Help: "HEMIS requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "upstream_request_seconds", Help: "HEMIS request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	ThrottleWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "upstream_throttle_wait_seconds", Help: "Time spent waiting for the per-class throttle",
		Buckets: []float64{0, .05, .1, .25, .5, 1, 2, 5},
	}, []string{"class"})

	// Сессии
	TokenCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "token_cache_total", Help: "Token cache lookups",
	}, []string{"result"})
	TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "token_refreshes_total", Help: "Upstream authentications by reason and outcome",
	}, []string{"reason", "outcome"})
	InvokeRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "invoke_retries_total", Help: "Operations retried after an expired token",
	})
	InvokeTerminalUnauthorized = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "invoke_unauthorized_after_retry_total", Help: "Operations still unauthorized after the single retry",
	})

	// Рассылка
	NotifySent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "notify_sent_total", Help: "Daily schedule messages sent",
	})
	NotifyFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "notify_failed_total", Help: "Daily schedule failures by stage",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(
		BotUpdates, HandlerErrors, DBPing,
		UpstreamRequests, UpstreamLatency, ThrottleWait,
		TokenCache, TokenRefreshes, InvokeRetries, InvokeTerminalUnauthorized,
		NotifySent, NotifyFailed,
	)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveUpstream(endpoint, outcome string, d time.Duration) {
	UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	UpstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}
