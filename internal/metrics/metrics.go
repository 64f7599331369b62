package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type TrackerMetrics interface {
	AddOutcome(kind string)
	AddUpstreamError(kind string)
	AddNotification(status string)
	ObservePass(elapsed time.Duration, players int)
}

func NewMetrics(registry *prometheus.Registry) TrackerMetrics {
	return setupPrometheusMetrics(registry)
}

func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

type prometheusMetrics struct {
	outcomes       *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	passDuration   prometheus.Histogram
	trackedPlayers prometheus.Gauge
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	return prometheusMetrics{
		outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dyfl_reconcile_outcomes_total",
				Help: "Reconciliation outcomes by kind",
			}, []string{"kind"}),
		upstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dyfl_upstream_errors_total",
				Help: "Classified upstream game API errors",
			}, []string{"kind"}),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dyfl_notifications_total",
				Help: "Defeat notifications by publish status",
			}, []string{"status"}),
		passDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dyfl_pass_duration_seconds",
				Help:    "Duration of a full detection pass",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			}),
		trackedPlayers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dyfl_tracked_players",
				Help: "Players processed by the last detection pass",
			}),
	}
}

func (m prometheusMetrics) AddOutcome(kind string) {
	m.outcomes.With(prometheus.Labels{"kind": kind}).Inc()
}

func (m prometheusMetrics) AddUpstreamError(kind string) {
	m.upstreamErrors.With(prometheus.Labels{"kind": kind}).Inc()
}

func (m prometheusMetrics) AddNotification(status string) {
	m.notifications.With(prometheus.Labels{"status": status}).Inc()
}

func (m prometheusMetrics) ObservePass(elapsed time.Duration, players int) {
	m.passDuration.Observe(elapsed.Seconds())
	m.trackedPlayers.Set(float64(players))
}

type nopMetrics struct{}

// Nop discards everything.
func Nop() TrackerMetrics { return nopMetrics{} }

func (nopMetrics) AddOutcome(string) {}
func (nopMetrics) AddUpstreamError(string) {}
func (nopMetrics) AddNotification(string) {}
func (nopMetrics) ObservePass(time.Duration, int) {}
