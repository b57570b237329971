package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Ops endpoint request rate. Watch for: scrape gaps (process down).
	HTTPRequestsTotal *prometheus.CounterVec

	// Ops endpoint latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Forecast upstream call rate. Watch for: error vs success ratio.
	ForecastFetchesTotal *prometheus.CounterVec

	// Forecast upstream latency. Watch for: p95 > 2s (upstream degradation).
	ForecastFetchDuration *prometheus.HistogramVec

	// Retry attempts against the forecast upstream. High retries = unstable upstream.
	ForecastRetriesTotal prometheus.Counter

	// Document cache hits. Misses show up as forecastFetchesTotal increments.
	DocumentCacheHitsTotal prometheus.Counter

	// Expired documents served because the upstream was unavailable.
	StaleDocumentServesTotal prometheus.Counter

	// Documents that failed schema validation. Any increment needs a look.
	ParseFailuresTotal prometheus.Counter

	// Rainy-period evaluations by outcome (rain, no_rain, error).
	EvaluationsTotal *prometheus.CounterVec

	// Notification deliveries by status (sent, error).
	NotificationsTotal *prometheus.CounterVec

	// Scheduled cycles by status (ok, error). The bot's heartbeat; a day
	// without increments means the scheduler is wedged.
	SchedulerCyclesTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests to the ops endpoints",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "Ops endpoint latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	ForecastFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastFetchesTotal",
			Help: "Total number of locationforecast API calls",
		},
		[]string{"status"},
	)
	ForecastFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastFetchDurationSeconds",
			Help:    "Locationforecast API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	ForecastRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastRetriesTotal",
			Help: "Total number of retry attempts for locationforecast calls",
		},
	)
	DocumentCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "documentCacheHitsTotal",
			Help: "Total number of forecast documents served from cache",
		},
	)
	StaleDocumentServesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "staleDocumentServesTotal",
			Help: "Expired cached documents served due to upstream failure",
		},
	)
	ParseFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parseFailuresTotal",
			Help: "Forecast documents rejected as malformed",
		},
	)
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluationsTotal",
			Help: "Rainy-period evaluations by outcome",
		},
		[]string{"outcome"},
	)
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notificationsTotal",
			Help: "Webhook notification deliveries by status",
		},
		[]string{"status"},
	)
	SchedulerCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedulerCyclesTotal",
			Help: "Scheduled rain-check cycles by status",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration,
		ForecastFetchesTotal, ForecastFetchDuration, ForecastRetriesTotal,
		DocumentCacheHitsTotal, StaleDocumentServesTotal, ParseFailuresTotal,
		EvaluationsTotal, NotificationsTotal, SchedulerCyclesTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
