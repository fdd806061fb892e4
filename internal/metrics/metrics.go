// Package metrics holds the prometheus collectors of the roofmeasure
// service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roofmeasure",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roofmeasure",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})

	// Raster metrics
	RasterDecodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roofmeasure",
		Subsystem: "raster",
		Name:      "decode_total",
		Help:      "GeoTIFF decodes by outcome (georeferenced, unplaced, malformed, unsupported, cancelled)",
	}, []string{"result"})

	RasterDecodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roofmeasure",
		Subsystem: "raster",
		Name:      "decode_duration_seconds",
		Help:      "Duration of GeoTIFF decoding",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	RasterFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roofmeasure",
		Subsystem: "raster",
		Name:      "fetch_total",
		Help:      "Raster fetches by outcome (ok, error, cancelled)",
	}, []string{"result"})

	FetchCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "roofmeasure",
		Subsystem: "fetch",
		Name:      "cache_hits_total",
		Help:      "Raster fetches served from the in-memory cache",
	})

	// Area metrics
	AreaComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roofmeasure",
		Subsystem: "area",
		Name:      "computations_total",
		Help:      "Geodesic area computations by method",
	}, []string{"method"})
)

// ObserveDecode records one decode outcome and its duration.
func ObserveDecode(result string, d time.Duration) {
	RasterDecodes.WithLabelValues(result).Inc()
	RasterDecodeDuration.Observe(d.Seconds())
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the prometheus /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
