package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "parking"

// Metrics holds the garage counters and gauges. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	eventsProcessed *prometheus.CounterVec
	eventsFailed    *prometheus.CounterVec
	vehiclesEntered prometheus.Counter
	vehiclesExited  prometheus.Counter
	revenue         *prometheus.CounterVec
	occupiedTotal   prometheus.Gauge
	occupiedSector  *prometheus.GaugeVec
	processingTime  *prometheus.HistogramVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Webhook events processed successfully.",
		}, []string{"event_type"}),
		eventsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Webhook events rejected or failed.",
		}, []string{"event_type", "reason"}),
		vehiclesEntered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicles_entered_total",
			Help:      "Vehicles admitted to the garage.",
		}),
		vehiclesExited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicles_exited_total",
			Help:      "Vehicles that left the garage.",
		}),
		revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_total",
			Help:      "Amount charged on exit.",
		}, []string{"sector"}),
		occupiedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "occupied_spots",
			Help:      "Occupied spots across the garage.",
		}),
		occupiedSector: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sector_occupied_spots",
			Help:      "Occupied spots per sector.",
		}, []string{"sector"}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_seconds",
			Help:      "Time spent processing a webhook event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	m.registry.MustRegister(
		m.eventsProcessed,
		m.eventsFailed,
		m.vehiclesEntered,
		m.vehiclesExited,
		m.revenue,
		m.occupiedTotal,
		m.occupiedSector,
		m.processingTime,
	)
	return m
}

// Registerer exposes the registry so other components can add collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventProcessed(eventType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.eventsProcessed.WithLabelValues(eventType).Inc()
	m.processingTime.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func (m *Metrics) EventFailed(eventType, reason string) {
	if m == nil {
		return
	}
	m.eventsFailed.WithLabelValues(eventType, reason).Inc()
}

func (m *Metrics) VehicleEntered() {
	if m == nil {
		return
	}
	m.vehiclesEntered.Inc()
}

// VehicleExited records an exit and the amount billed for it.
func (m *Metrics) VehicleExited(sector string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.vehiclesExited.Inc()
	m.revenue.WithLabelValues(sector).Add(amount.InexactFloat64())
}

// SetOccupancy replaces the occupancy gauges. Sectors missing from bySector
// are dropped.
func (m *Metrics) SetOccupancy(bySector map[string]int64) {
	if m == nil {
		return
	}
	m.occupiedSector.Reset()
	var total int64
	for sector, n := range bySector {
		m.occupiedSector.WithLabelValues(sector).Set(float64(n))
		total += n
	}
	m.occupiedTotal.Set(float64(total))
}
