package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Dispatch metrics
	TouchesSent       *prometheus.CounterVec
	TouchesFailed     *prometheus.CounterVec
	ComplianceBlocks  *prometheus.CounterVec
	WindowReschedules *prometheus.CounterVec
	DispatchDuration  *prometheus.HistogramVec

	// Ingestion metrics
	WebhookEvents       *prometheus.CounterVec
	ConversationsOpened prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		// Dispatch metrics
		TouchesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "touches_sent_total",
				Help: "Total number of touches handed to a provider",
			},
			[]string{"channel"},
		),
		TouchesFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "touches_failed_total",
				Help: "Total number of touches moved to the failed status",
			},
			[]string{"channel", "reason"},
		),
		ComplianceBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compliance_blocks_total",
				Help: "Total number of sends blocked by DNC preflight or frequency caps",
			},
			[]string{"reason"},
		),
		WindowReschedules: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "window_reschedules_total",
				Help: "Total number of jobs parked until the legal send window opens",
			},
			[]string{"channel"},
		),
		DispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatch_duration_seconds",
				Help:    "Time spent processing one dispatch job",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),

		// Ingestion metrics
		WebhookEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Total number of webhook deliveries received",
			},
			[]string{"provider", "outcome"}, // accepted, duplicate, unmatched
		),
		ConversationsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "conversations_opened_total",
			Help: "Total number of conversations opened by inbound messages",
		}),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // Use route pattern, not actual path (e.g., /api/v1/campaigns/:id)

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)

			return err
		}
	}
}

// RecordTouchSent increments the sent counter for a channel
func (m *Metrics) RecordTouchSent(channel string) {
	if m == nil {
		return
	}
	m.TouchesSent.WithLabelValues(channel).Inc()
}

// RecordTouchFailed increments the failed counter for a channel and reason
func (m *Metrics) RecordTouchFailed(channel, reason string) {
	if m == nil {
		return
	}
	m.TouchesFailed.WithLabelValues(channel, reason).Inc()
}

// RecordComplianceBlock increments the compliance block counter
func (m *Metrics) RecordComplianceBlock(reason string) {
	if m == nil {
		return
	}
	m.ComplianceBlocks.WithLabelValues(reason).Inc()
}

// RecordWindowReschedule increments the legal-window park counter
func (m *Metrics) RecordWindowReschedule(channel string) {
	if m == nil {
		return
	}
	m.WindowReschedules.WithLabelValues(channel).Inc()
}

// RecordDispatch records the duration of one dispatch job
func (m *Metrics) RecordDispatch(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DispatchDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordWebhookEvent increments the webhook counter for a provider
func (m *Metrics) RecordWebhookEvent(provider, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(provider, outcome).Inc()
}

// RecordConversationOpened increments the opened conversations counter
func (m *Metrics) RecordConversationOpened() {
	if m == nil {
		return
	}
	m.ConversationsOpened.Inc()
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
