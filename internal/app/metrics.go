package app

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks application-level counters. It is a prometheus.Collector
// so the counters are exported next to the bus metrics.
type Metrics struct {
	// Config reloads
	reloads        atomic.Uint64
	reloadFailures atomic.Uint64

	// Workload
	heartbeats    atomic.Uint64
	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	jobsFailed    atomic.Uint64

	// Start time for uptime calculation
	startTime time.Time
}

var (
	reloadsDesc = prometheus.NewDesc(
		"stickybus_config_reloads_total",
		"Configuration reloads by result.",
		[]string{"result"}, nil,
	)
	heartbeatsDesc = prometheus.NewDesc(
		"stickybus_demo_heartbeats_total",
		"Heartbeats posted by the demo workload.",
		nil, nil,
	)
	jobsDesc = prometheus.NewDesc(
		"stickybus_demo_jobs_total",
		"Demo jobs by state.",
		[]string{"state"}, nil,
	)
	uptimeDesc = prometheus.NewDesc(
		"stickybus_uptime_seconds",
		"Seconds since the application started.",
		nil, nil,
	)
)

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordReload records a configuration reload attempt.
func (m *Metrics) RecordReload(err error) {
	if err != nil {
		m.reloadFailures.Add(1)
		return
	}
	m.reloads.Add(1)
}

// RecordHeartbeat records a posted heartbeat.
func (m *Metrics) RecordHeartbeat() {
	m.heartbeats.Add(1)
}

// RecordJobSubmitted records a job posted to the jobs bus.
func (m *Metrics) RecordJobSubmitted() {
	m.jobsSubmitted.Add(1)
}

// RecordJobCompleted records a job that finished successfully.
func (m *Metrics) RecordJobCompleted() {
	m.jobsCompleted.Add(1)
}

// RecordJobFailed records a job whose runner returned an error.
func (m *Metrics) RecordJobFailed() {
	m.jobsFailed.Add(1)
}

// Uptime returns the time since the metrics were created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Reloads:        m.reloads.Load(),
		ReloadFailures: m.reloadFailures.Load(),
		Heartbeats:     m.heartbeats.Load(),
		JobsSubmitted:  m.jobsSubmitted.Load(),
		JobsCompleted:  m.jobsCompleted.Load(),
		JobsFailed:     m.jobsFailed.Load(),
		Uptime:         m.Uptime(),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- reloadsDesc
	ch <- heartbeatsDesc
	ch <- jobsDesc
	ch <- uptimeDesc
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	s := m.Snapshot()
	ch <- prometheus.MustNewConstMetric(reloadsDesc, prometheus.CounterValue, float64(s.Reloads), "ok")
	ch <- prometheus.MustNewConstMetric(reloadsDesc, prometheus.CounterValue, float64(s.ReloadFailures), "error")
	ch <- prometheus.MustNewConstMetric(heartbeatsDesc, prometheus.CounterValue, float64(s.Heartbeats))
	ch <- prometheus.MustNewConstMetric(jobsDesc, prometheus.CounterValue, float64(s.JobsSubmitted), "submitted")
	ch <- prometheus.MustNewConstMetric(jobsDesc, prometheus.CounterValue, float64(s.JobsCompleted), "completed")
	ch <- prometheus.MustNewConstMetric(jobsDesc, prometheus.CounterValue, float64(s.JobsFailed), "failed")
	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, s.Uptime.Seconds())
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Reloads        uint64
	ReloadFailures uint64
	Heartbeats     uint64
	JobsSubmitted  uint64
	JobsCompleted  uint64
	JobsFailed     uint64
	Uptime         time.Duration
}
