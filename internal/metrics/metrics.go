package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks outbound API calls to the credit bureau.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_api_requests_total",
			Help: "Total number of upstream API requests made (by venue, endpoint, method and status).",
		},
		[]string{"venue", "endpoint", "method", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_api_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 15), // 5ms → ~80s
		},
		[]string{"venue", "endpoint", "method"},
	)

	// Counts bearer token logins, by result.
	TokenLoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serasa_token_logins_total",
			Help: "Number of login calls issued to obtain a bearer token.",
		},
		[]string{"result"}, // ok | error
	)

	// Counts report fetches by report name and outcome.
	ReportFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serasa_report_fetches_total",
			Help: "Number of credit report fetches by report name and result.",
		},
		[]string{"report_name", "result"}, // ok | login_error | query_error | malformed_output | error
	)

	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages processed.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Counts outbound events per broker, independent of transport.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Number of domain events published, by broker, event type and result.",
		},
		[]string{"broker", "event_type", "result"},
	)

	SecretsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secrets_cache_access_total",
			Help: "Number of cache hits/misses in secret cache.",
		},
		[]string{"result"}, // hit | miss
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of adapter-level errors by component.",
		},
		[]string{"component", "reason"},
	)
)

// ObserveDuration records the time elapsed since start on the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters are not meant for duration tracking
	}
}

func IncUpstreamRequest(venue, endpoint, method, status string) {
	UpstreamRequestsTotal.WithLabelValues(venue, endpoint, method, status).Inc()
}

// ObserveUpstream counts a completed upstream request and records its latency.
func ObserveUpstream(venue, endpoint, method, status string, elapsed time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(venue, endpoint, method, status).Inc()
	UpstreamRequestDuration.WithLabelValues(venue, endpoint, method).Observe(elapsed.Seconds())
}

func IncTokenLogin(result string) {
	TokenLoginsTotal.WithLabelValues(result).Inc()
}

func IncReportFetch(reportName, result string) {
	ReportFetchesTotal.WithLabelValues(reportName, result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncEventPublished(broker, eventType, result string) {
	EventsPublishedTotal.WithLabelValues(broker, eventType, result).Inc()
}

func IncCacheHit(result string) {
	SecretsCacheHits.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}
