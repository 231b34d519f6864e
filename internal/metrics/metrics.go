// Package metrics tracks per-run counters for the event checker on a private
// Prometheus registry. The scheduler runs the checker as a short-lived job, so
// the registry is written out in the node-exporter textfile format instead of
// being served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reject reasons
const (
	ReasonMissingField = "missing_field"
	ReasonPresale      = "presale"
	ReasonNoIdentity   = "no_identity"
)

// Metrics holds the run counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cardsExtracted prometheus.Counter
	cardsRejected  *prometheus.CounterVec
	duplicates     prometheus.Counter
	known          prometheus.Counter
	newEvents      prometheus.Counter
	storeErrors    prometheus.Counter
	notifications  *prometheus.CounterVec
	runDuration    prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// New creates the counters and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.cardsExtracted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mothership",
		Name:      "cards_extracted_total",
		Help:      "Raw event cards extracted from the listing page",
	})
	m.cardsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mothership",
		Name:      "cards_rejected_total",
		Help:      "Cards the parser did not turn into events",
	}, []string{"reason"})
	m.duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mothership",
		Name:      "events_duplicate_total",
		Help:      "Events listed more than once on the same page",
	})
	m.known = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mothership",
		Name:      "events_known_total",
		Help:      "Events already recorded by a previous run",
	})
	m.newEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mothership",
		Name:      "events_new_total",
		Help:      "Events seen for the first time",
	})
	m.storeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mothership",
		Name:      "store_errors_total",
		Help:      "Dedup store calls that failed",
	})
	m.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mothership",
		Name:      "notifications_total",
		Help:      "Notification sends by result",
	}, []string{"result"})
	m.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mothership",
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last run",
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mothership",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run",
	})

	m.registry.MustRegister(
		m.cardsExtracted,
		m.cardsRejected,
		m.duplicates,
		m.known,
		m.newEvents,
		m.storeErrors,
		m.notifications,
		m.runDuration,
		m.lastSuccess,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CardExtracted() {
	if m != nil {
		m.cardsExtracted.Inc()
	}
}

func (m *Metrics) CardRejected(reason string) {
	if m != nil {
		m.cardsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Duplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

func (m *Metrics) Known() {
	if m != nil {
		m.known.Inc()
	}
}

func (m *Metrics) NewEvent() {
	if m != nil {
		m.newEvents.Inc()
	}
}

func (m *Metrics) StoreError() {
	if m != nil {
		m.storeErrors.Inc()
	}
}

// Notification records one send attempt.
func (m *Metrics) Notification(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// Notifications records a batch of send attempts.
func (m *Metrics) Notifications(sent, failed int) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues("sent").Add(float64(sent))
	m.notifications.WithLabelValues("failed").Add(float64(failed))
}

// RunFinished records the run duration, and the success timestamp when ok.
func (m *Metrics) RunFinished(started time.Time, ok bool) {
	if m == nil {
		return
	}
	now := time.Now()
	m.runDuration.Set(now.Sub(started).Seconds())
	if ok {
		m.lastSuccess.Set(float64(now.Unix()))
	}
}

// WriteTextfile writes the registry to path for the textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
