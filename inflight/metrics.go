/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package inflight

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics to analyze admission decisions.
type MetricsCollector interface {
	// IncAdmitted increments the total number of admitted calls.
	IncAdmitted()

	// IncBounced increments the total number of bounced calls.
	IncBounced()

	// SetKeysAmount sets the current number of keys with in-flight calls.
	SetKeysAmount(int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for the limiter.
type PrometheusMetrics struct {
	AdmittedTotal *prometheus.CounterVec
	BouncedTotal  *prometheus.CounterVec
	KeysAmount    *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	admittedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "inflight_admitted_total",
			Help:        "Number of admitted calls.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	bouncedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "inflight_bounced_total",
			Help:        "Number of bounced calls.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	keysAmount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "inflight_keys_amount",
			Help:        "Current number of keys with in-flight calls.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		AdmittedTotal: admittedTotal,
		BouncedTotal:  bouncedTotal,
		KeysAmount:    keysAmount,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		AdmittedTotal: pm.AdmittedTotal.MustCurryWith(labels),
		BouncedTotal:  pm.BouncedTotal.MustCurryWith(labels),
		KeysAmount:    pm.KeysAmount.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.AdmittedTotal,
		pm.BouncedTotal,
		pm.KeysAmount,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.AdmittedTotal)
	prometheus.Unregister(pm.BouncedTotal)
	prometheus.Unregister(pm.KeysAmount)
}

// IncAdmitted increments the total number of admitted calls.
func (pm *PrometheusMetrics) IncAdmitted() {
	pm.AdmittedTotal.With(nil).Inc()
}

// IncBounced increments the total number of bounced calls.
func (pm *PrometheusMetrics) IncBounced() {
	pm.BouncedTotal.With(nil).Inc()
}

// SetKeysAmount sets the current number of keys with in-flight calls.
func (pm *PrometheusMetrics) SetKeysAmount(amount int) {
	pm.KeysAmount.With(nil).Set(float64(amount))
}

type disabledMetrics struct{}

func (disabledMetrics) IncAdmitted()      {}
func (disabledMetrics) IncBounced()       {}
func (disabledMetrics) SetKeysAmount(int) {}
