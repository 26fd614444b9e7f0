package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powder_fetch_requests_total",
			Help: "Total number of upstream page fetches",
		},
		[]string{"host", "status"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powder_fetch_duration_seconds",
			Help:    "Duration of upstream page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powder_fetch_bytes_total",
			Help: "Total bytes downloaded from upstream pages",
		},
		[]string{"host"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powder_cache_lookups_total",
			Help: "Forecast cache lookups by result",
		},
		[]string{"result"},
	)

	CacheRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powder_cache_refreshes_total",
			Help: "Background cache refreshes by outcome",
		},
		[]string{"outcome"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "powder_cache_entries",
			Help: "Number of URLs held in the forecast cache",
		},
	)

	ExtractionWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powder_extraction_warnings_total",
			Help: "Table cells that could not be parsed, by data type",
		},
		[]string{"data_type"},
	)
)

// RecordFetch updates the fetch metrics for one upstream request. A status of
// 0 means the request failed before a response arrived.
func RecordFetch(host string, status int, d time.Duration, bytes int) {
	statusStr := "error"
	if status > 0 {
		statusStr = strconv.Itoa(status)
	}
	FetchRequestsTotal.WithLabelValues(host, statusStr).Inc()
	FetchDuration.WithLabelValues(host).Observe(d.Seconds())
	FetchBytesTotal.WithLabelValues(host).Add(float64(bytes))
}

// RecordLookup counts a cache hit or miss.
func RecordLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordRefresh counts the outcome of a background refresh.
func RecordRefresh(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	CacheRefreshesTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
