package emulator

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ps2ble/bondmgr/api/companion"
)

// Metrics exposes the emulator metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	scanMode            prometheus.Gauge
	bondsTotal          prometheus.Counter
	deletesTotal        *prometheus.CounterVec
}

// NewMetrics creates a fresh registry with the emulator metrics registered.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bondmgr_emulator",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by the emulator",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bondmgr_emulator",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the emulator",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	scanMode := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bondmgr_emulator",
		Name:      "scan_mode",
		Help:      "Current scan mode of the emulated adapter",
	})

	bondsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bondmgr_emulator",
		Name:      "bonds_total",
		Help:      "Total number of devices bonded while scanning",
	})

	deletesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bondmgr_emulator",
		Name:      "bond_deletes_total",
		Help:      "Count of bond deletion requests by result",
	}, []string{"deleted"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		scanMode,
		bondsTotal,
		deletesTotal,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		scanMode:            scanMode,
		bondsTotal:          bondsTotal,
		deletesTotal:        deletesTotal,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// SetScanMode records the current scan mode.
func (m *Metrics) SetScanMode(mode companion.ScanMode) {
	if m == nil {
		return
	}
	m.scanMode.Set(float64(mode))
}

// IncBond increments the bonded devices counter.
func (m *Metrics) IncBond() {
	if m == nil {
		return
	}
	m.bondsTotal.Inc()
}

// IncDelete counts a bond deletion request.
func (m *Metrics) IncDelete(deleted bool) {
	if m == nil {
		return
	}
	m.deletesTotal.WithLabelValues(strconv.FormatBool(deleted)).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
