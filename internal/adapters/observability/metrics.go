package observability

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "holidays", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "holidays", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	FetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "holidays", Name: "fetch_requests_total", Help: "Outbound page fetches."},
		[]string{"agency", "mode", "outcome"}, // mode: http|browser, outcome: ok|error
	)
	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "holidays", Name: "fetch_duration_seconds",
			Help:    "Outbound page fetch duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agency", "mode"},
	)
	CrawlSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "holidays", Name: "crawl_steps_total", Help: "Crawl chain steps by stop reason."},
		[]string{"agency", "result"}, // result: continued|stopped:<reason>
	)
	ExtractedOffers = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "holidays", Name: "extracted_offers_total", Help: "Offer records emitted by extractors."},
		[]string{"agency"},
	)
	ExtractionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "holidays", Name: "extraction_rejections_total", Help: "Candidates rejected per missing required field."},
		[]string{"agency", "reason"}, // reason: keyword|price|term
	)
	PersistOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "holidays", Name: "persist_outcomes_total", Help: "Per-record persistence outcomes."},
		[]string{"agency", "outcome"}, // outcome: created|duplicate|hotel_invalid|offer_invalid|error
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "holidays", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"},
	)
)

// Serve starts the standalone metrics listener when METRICS_ADDR is set.
func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := metricsMux()

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// metricsMux serves the pipeline registry; the prometheus default
// registry never sees the holidays collectors.
func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))
	return mux
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency,
		FetchRequests, FetchLatency,
		CrawlSteps, ExtractedOffers, ExtractionRejections, PersistOutcomes,
		CacheEvents,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveFetch(agency, mode string, err error, dur time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	FetchRequests.WithLabelValues(agency, mode, outcome).Inc()
	FetchLatency.WithLabelValues(agency, mode).Observe(dur.Seconds())
}

func ObserveCrawlStep(agency, result string) {
	CrawlSteps.WithLabelValues(agency, result).Inc()
}

func ObserveExtraction(agency string, offers, missingKeyword, missingPrice, missingTerm int) {
	ExtractedOffers.WithLabelValues(agency).Add(float64(offers))
	ExtractionRejections.WithLabelValues(agency, "keyword").Add(float64(missingKeyword))
	ExtractionRejections.WithLabelValues(agency, "price").Add(float64(missingPrice))
	ExtractionRejections.WithLabelValues(agency, "term").Add(float64(missingTerm))
}

func ObservePersist(agency, outcome string) {
	PersistOutcomes.WithLabelValues(agency, outcome).Inc()
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}
