package event

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const metricsNamespace = "stickybus"

// metrics holds the prometheus collectors of one bus.
// Collectors exist even when no registerer is configured so the hot path
// never branches on it.
type metrics struct {
	posted        prometheus.Counter
	noSubscribers prometheus.Counter
	deliveries    *prometheus.CounterVec
	failures      *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	subscriptions prometheus.Gauge
	sticky        prometheus.Gauge
	latency       *prometheus.HistogramVec

	// registered lists the collectors this bus owns in its registerer.
	registered []prometheus.Collector
}

func newMetrics(reg prometheus.Registerer, bus string, logger *zap.SugaredLogger) *metrics {
	labels := prometheus.Labels{"bus": bus}
	m := &metrics{
		posted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "events_posted_total",
			Help:        "Number of events accepted by Post.",
			ConstLabels: labels,
		}),
		noSubscribers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "events_without_subscribers_total",
			Help:        "Number of posted events that matched no subscription.",
			ConstLabels: labels,
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "deliveries_total",
			Help:        "Number of subscriber invocations by thread mode.",
			ConstLabels: labels,
		}, []string{"mode"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "delivery_failures_total",
			Help:        "Number of failed subscriber invocations by thread mode and kind (error or panic).",
			ConstLabels: labels,
		}, []string{"mode", "kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "dropped_total",
			Help:        "Number of deliveries rejected by a full or stopped queue.",
			ConstLabels: labels,
		}, []string{"mode"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "subscriptions",
			Help:        "Number of registered subscriptions.",
			ConstLabels: labels,
		}),
		sticky: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "sticky_events",
			Help:        "Number of retained sticky events.",
			ConstLabels: labels,
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "delivery_seconds",
			Help:        "Subscriber invocation time by thread mode.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBucketsRange(1e-6, 10, 15),
		}, []string{"mode"}),
	}

	if reg == nil {
		return m
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				logger.Warnw("bus metrics already registered, keeping them unexported", "bus", bus)
				continue
			}
			logger.Warnw("registering bus metrics", "bus", bus, "error", err)
			continue
		}
		m.registered = append(m.registered, c)
	}
	return m
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.posted,
		m.noSubscribers,
		m.deliveries,
		m.failures,
		m.dropped,
		m.subscriptions,
		m.sticky,
		m.latency,
	}
}

// unregister removes the collectors this bus registered from reg.
func (m *metrics) unregister(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range m.registered {
		reg.Unregister(c)
	}
	m.registered = nil
}

func (m *metrics) delivered(mode ThreadMode, d time.Duration) {
	m.deliveries.WithLabelValues(mode.String()).Inc()
	m.latency.WithLabelValues(mode.String()).Observe(d.Seconds())
}

func (m *metrics) failed(mode ThreadMode, kind string) {
	m.failures.WithLabelValues(mode.String(), kind).Inc()
}
