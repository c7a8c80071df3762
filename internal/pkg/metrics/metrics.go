package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_geocode_requests_total",
		Help: "Total reverse geocode lookups",
	})
	GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_geocode_cache_hits_total",
		Help: "Reverse geocode lookups served from redis",
	})
	GeocodeFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_geocode_fail_total",
		Help: "Reverse geocode lookups that fell back to the coordinate string",
	})
	GeocodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_geocode_duration_ms",
		Help:    "Reverse geocode provider call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
	})
	AcquisitionOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_acquisition_outcomes_total",
		Help: "Acquisition pipeline terminal outcomes",
	}, []string{"outcome"})
	ActiveWatches = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_active_watches",
		Help: "Position watch subscriptions currently open",
	})
	AttendanceEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_events_total",
		Help: "Check-in and check-out events by classification",
	}, []string{"kind", "status"})
)

func init() {
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeCacheHitsTotal)
	prometheus.MustRegister(GeocodeFailTotal)
	prometheus.MustRegister(GeocodeDurationMs)
	prometheus.MustRegister(AcquisitionOutcomesTotal)
	prometheus.MustRegister(ActiveWatches)
	prometheus.MustRegister(AttendanceEventsTotal)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
