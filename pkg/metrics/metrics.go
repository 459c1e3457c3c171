package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Volume/snapshot gauges, refreshed by the driver on every
	// VolumeDriver.List / VolumeDriver.Snapshot.List call respectively.
	VolumesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "buttervolume_volumes_total",
			Help: "Total number of volumes currently present under the volumes root",
		},
	)

	SnapshotsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "buttervolume_snapshots_total",
			Help: "Total number of snapshots currently present under the snapshots root",
		},
	)

	// Driver API metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buttervolume_requests_total",
			Help: "Total number of plugin API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buttervolume_request_duration_seconds",
			Help:    "Plugin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Scheduler metrics
	SchedulerTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buttervolume_scheduler_ticks_total",
			Help: "Total number of scheduler ticks processed",
		},
	)

	ScheduledJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buttervolume_scheduled_jobs_total",
			Help: "Total number of scheduled jobs dispatched by action kind and outcome",
		},
		[]string{"action", "outcome"},
	)

	SchedulerPaused = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "buttervolume_scheduler_paused",
			Help: "Whether the global pause marker is present (1) or not (0)",
		},
	)

	// Purge/send domain counters
	SnapshotsPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "buttervolume_snapshots_purged_total",
			Help: "Total number of snapshots removed by the purge engine",
		},
	)

	SendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buttervolume_sends_total",
			Help: "Total number of snapshot sends by host and outcome (incremental, full, failed)",
		},
		[]string{"host", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		VolumesTotal,
		SnapshotsTotal,
		RequestsTotal,
		RequestDuration,
		SchedulerTicksTotal,
		ScheduledJobsTotal,
		SchedulerPaused,
		SnapshotsPurgedTotal,
		SendsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
