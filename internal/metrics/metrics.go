// Package metrics provides Prometheus metrics for the lifecycle service
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors
type Metrics struct {
	// Registration authority calls
	RegistrationRequestsTotal *prometheus.CounterVec
	RegistrationAttemptsTotal *prometheus.CounterVec
	RegistrationDuration      *prometheus.HistogramVec
	ResolutionUnconfirmed     *prometheus.CounterVec

	// Lifecycle
	TransitionsTotal     *prometheus.CounterVec
	VersionsCreated      prometheus.Counter
	RetryPendingVersions prometheus.Gauge
}

// NewMetrics creates and registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.RegistrationRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsd_registration_requests_total",
			Help: "Logical registration authority operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	m.RegistrationAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsd_registration_attempts_total",
			Help: "HTTP attempts against the registration authority",
		},
		[]string{"op", "status"},
	)

	m.RegistrationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lsd_registration_duration_seconds",
			Help:    "Duration of registration operations including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	m.ResolutionUnconfirmed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsd_resolution_unconfirmed_total",
			Help: "Resolution or landing checks that did not succeed within the retry bound",
		},
		[]string{"check"},
	)

	m.TransitionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lsd_lifecycle_transitions_total",
			Help: "Lifecycle actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	m.VersionsCreated = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "lsd_versions_created_total",
			Help: "Document versions created, initial and copy-on-write",
		},
	)

	m.RetryPendingVersions = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "lsd_registration_retry_pending",
			Help: "Versions whose last withdraw registration is waiting for retry",
		},
	)

	return m
}

// ObserveRegistration records one logical registration operation.
func (m *Metrics) ObserveRegistration(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.RegistrationRequestsTotal.WithLabelValues(op, outcome).Inc()
	m.RegistrationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveAttempt(op, status string) {
	if m == nil {
		return
	}
	m.RegistrationAttemptsTotal.WithLabelValues(op, status).Inc()
}

func (m *Metrics) ObserveUnconfirmed(check string) {
	if m == nil {
		return
	}
	m.ResolutionUnconfirmed.WithLabelValues(check).Inc()
}

func (m *Metrics) ObserveTransition(action string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveVersionCreated() {
	if m == nil {
		return
	}
	m.VersionsCreated.Inc()
}

func (m *Metrics) SetRetryPending(n int) {
	if m == nil {
		return
	}
	m.RetryPendingVersions.Set(float64(n))
}
