// Package metrics holds the Prometheus collectors exported by chainpulse.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Provider metrics
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainpulse_provider_calls_total",
			Help: "Total number of option-chain provider calls",
		},
		[]string{"provider", "status"}, // status: success|error
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainpulse_provider_latency_seconds",
			Help:    "Option-chain fetch latency in seconds, retries included",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	ProviderFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chainpulse_provider_fallbacks_total",
			Help: "Times AUTO mode fell back from the primary to the secondary provider",
		},
	)

	// Ingestion metrics
	Ingestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainpulse_ingestions_total",
			Help: "Total number of ingestion cycles",
		},
		[]string{"symbol", "status"}, // status: success|fetch_error|empty|persist_error
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainpulse_ingest_duration_seconds",
			Help:    "End-to-end ingestion duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"symbol"},
	)

	LegsStored = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainpulse_legs_stored",
			Help: "Number of option legs in the live snapshot",
		},
		[]string{"symbol"},
	)

	LastIngest = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainpulse_last_ingest_timestamp",
			Help: "Unix timestamp of the last successful ingestion",
		},
		[]string{"symbol"},
	)

	// Alert metrics
	AlertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainpulse_alerts_total",
			Help: "Total number of alert events emitted",
		},
		[]string{"rule", "severity"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(ProviderCalls)
		prometheus.MustRegister(ProviderLatency)
		prometheus.MustRegister(ProviderFallbacks)

		prometheus.MustRegister(Ingestions)
		prometheus.MustRegister(IngestDuration)
		prometheus.MustRegister(LegsStored)
		prometheus.MustRegister(LastIngest)

		prometheus.MustRegister(AlertsFired)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordProviderCall records one provider fetch
func RecordProviderCall(provider string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ProviderCalls.WithLabelValues(provider, status).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// RecordIngestion records an ingestion cycle outcome
func RecordIngestion(symbol, status string, duration time.Duration, legs int) {
	Ingestions.WithLabelValues(symbol, status).Inc()
	IngestDuration.WithLabelValues(symbol).Observe(duration.Seconds())

	if status == "success" {
		LegsStored.WithLabelValues(symbol).Set(float64(legs))
		LastIngest.WithLabelValues(symbol).SetToCurrentTime()
	}
}

// RecordAlert records an emitted alert event
func RecordAlert(rule, severity string) {
	AlertsFired.WithLabelValues(rule, severity).Inc()
}
