// Package telemetry provides Prometheus metrics for the Vulkan presentation bridge.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics     *Metrics
	globalMetricsOnce sync.Once
)

// Metrics holds all Prometheus metrics for the presentation bridge
type Metrics struct {
	// Frame metrics
	FramesPresented prometheus.Counter
	PresentsSkipped prometheus.Counter
	PoolRebuilds    prometheus.Counter

	// Submission metrics
	QueueSubmissions  prometheus.Counter
	SubmissionErrors  *prometheus.CounterVec
	CompletedTick     prometheus.Gauge
	OutstandingFrames prometheus.Gauge

	// Device metrics
	CapabilityDowngrades *prometheus.CounterVec
	InterfaceRefreshes   prometheus.Counter
	InterfaceChanges     prometheus.Counter
}

// New creates and registers all Prometheus metrics (singleton pattern to avoid double registration)
func New() *Metrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

func newMetrics() *Metrics {
	m := &Metrics{
		FramesPresented: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "azahar",
				Subsystem: "present",
				Name:      "frames_total",
				Help:      "Total number of frames handed to the frontend",
			},
		),
		PresentsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "azahar",
				Subsystem: "present",
				Name:      "skipped_total",
				Help:      "Presentations skipped because the frontend interface was unavailable",
			},
		),
		PoolRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "azahar",
				Subsystem: "present",
				Name:      "pool_rebuilds_total",
				Help:      "Frame pool rebuilds (resolution changes)",
			},
		),
		QueueSubmissions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "azahar",
				Subsystem: "scheduler",
				Name:      "submissions_total",
				Help:      "Command buffer submissions to the frontend-owned queue",
			},
		),
		SubmissionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "azahar",
				Subsystem: "scheduler",
				Name:      "submission_errors_total",
				Help:      "Failed queue submissions by cause",
			},
			[]string{"cause"},
		),
		CompletedTick: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "azahar",
				Subsystem: "scheduler",
				Name:      "completed_tick",
				Help:      "Highest tick of GPU work considered complete",
			},
		),
		OutstandingFrames: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "azahar",
				Subsystem: "present",
				Name:      "outstanding_frames",
				Help:      "Frames currently allocated in the pool",
			},
		),
		CapabilityDowngrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "azahar",
				Subsystem: "device",
				Name:      "capability_downgrades_total",
				Help:      "Device capabilities disabled after verification failed",
			},
			[]string{"capability"},
		),
		InterfaceRefreshes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "azahar",
				Subsystem: "frontend",
				Name:      "interface_refreshes_total",
				Help:      "Frontend render interface refresh events",
			},
		),
		InterfaceChanges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "azahar",
				Subsystem: "frontend",
				Name:      "interface_changes_total",
				Help:      "Refresh events where the interface identity actually changed",
			},
		),
	}

	prometheus.MustRegister(
		m.FramesPresented,
		m.PresentsSkipped,
		m.PoolRebuilds,
		m.QueueSubmissions,
		m.SubmissionErrors,
		m.CompletedTick,
		m.OutstandingFrames,
		m.CapabilityDowngrades,
		m.InterfaceRefreshes,
		m.InterfaceChanges,
	)

	return m
}
