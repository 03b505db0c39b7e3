// Package metrics provides Prometheus metrics for monitoring altreach.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts total requests by command and error kind.
	// Successful requests carry an empty error kind as "ok".
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altreach_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"command", "result"},
	)

	// RequestDuration tracks request duration by command.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "altreach_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
		},
		[]string{"command"},
	)

	// ExtractionsTotal counts extraction outcomes by error kind.
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altreach_extractions_total",
			Help: "Total extraction sessions by outcome",
		},
		[]string{"result"},
	)

	// PoolAcquired counts browser acquisitions from the pool.
	PoolAcquired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "altreach_browser_pool_acquired_total",
			Help: "Total browser acquisitions from pool",
		},
	)

	// PoolTimeouts counts acquires that gave up waiting for a browser.
	PoolTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "altreach_browser_pool_timeouts_total",
			Help: "Total acquires that timed out waiting for a browser",
		},
	)

	// PoolReaped counts browsers removed by the idle reaper.
	PoolReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "altreach_browser_pool_reaped_total",
			Help: "Total idle browsers reaped",
		},
	)

	// MemoryUsageBytes shows current memory usage.
	MemoryUsageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "altreach_memory_usage_bytes",
			Help: "Current memory usage in bytes (alloc)",
		},
	)

	// MemorySysBytes shows system memory obtained.
	MemorySysBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "altreach_memory_sys_bytes",
			Help: "Total memory obtained from system",
		},
	)

	// GoroutineCount shows current goroutine count.
	GoroutineCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "altreach_goroutines",
			Help: "Current number of goroutines",
		},
	)

	// BuildInfo provides build information as labels.
	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "altreach_build_info",
			Help: "Build information",
		},
		[]string{"version", "go_version"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ExtractionsTotal,
		PoolAcquired,
		PoolTimeouts,
		PoolReaped,
		MemoryUsageBytes,
		MemorySysBytes,
		GoroutineCount,
		BuildInfo,
	)
}

// PoolObserver is the pool surface the gauges read from.
type PoolObserver interface {
	Size() int
	InUse() int
	Idle() int
}

// RegisterPool exposes live pool occupancy as gauges. GaugeFunc keeps
// the pool free of any metrics dependency: the registry pulls the
// numbers on scrape instead of the pool pushing them.
func RegisterPool(pool PoolObserver) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "altreach_browser_pool_size",
			Help: "Browser processes currently tracked by the pool",
		}, func() float64 { return float64(pool.Size()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "altreach_browser_pool_in_use",
			Help: "Browser processes currently checked out",
		}, func() float64 { return float64(pool.InUse()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "altreach_browser_pool_idle",
			Help: "Browser processes idle and ready for checkout",
		}, func() float64 { return float64(pool.Idle()) }),
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}

// StartMemoryCollector starts a goroutine that periodically updates memory metrics.
func StartMemoryCollector(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			updateMemoryMetrics()
		case <-stopCh:
			return
		}
	}
}

func updateMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryUsageBytes.Set(float64(m.Alloc))
	MemorySysBytes.Set(float64(m.Sys))
	GoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// RecordRequest records metrics for a completed request. result is "ok"
// or an error kind from the types package.
func RecordRequest(command, result string, duration time.Duration) {
	RequestsTotal.WithLabelValues(command, result).Inc()
	RequestDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordExtraction records the outcome of one extraction session.
func RecordExtraction(result string) {
	ExtractionsTotal.WithLabelValues(result).Inc()
}
