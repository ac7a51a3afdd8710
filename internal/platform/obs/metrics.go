package obs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles the simulation engine's Prometheus metrics.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	TicksTotal        prometheus.Counter
	TickDuration      prometheus.Histogram
	ShipmentsActive   prometheus.Gauge
	ShipmentsCreated  prometheus.Counter
	ShipmentsFinished *prometheus.CounterVec
	Incidents         *prometheus.CounterVec
	PayoutsTotal      prometheus.Counter
	ConvoyChanges     *prometheus.CounterVec
}

// NewEngineCollector registers engine metrics against reg, defaulting to the
// global registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Number of scheduler ticks processed.",
	}), "sim_ticks_total")
	if err != nil {
		return nil, err
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Wall time spent advancing all active shipments for one tick.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "sim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shipments_active",
		Help: "Shipments that have not reached a terminal status.",
	}), "shipments_active")
	if err != nil {
		return nil, err
	}

	created, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipments_created_total",
		Help: "Shipments accepted by the engine.",
	}), "shipments_created_total")
	if err != nil {
		return nil, err
	}

	finished, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shipments_finished_total",
		Help: "Shipments that left the active set, labeled by final status.",
	}, []string{"status"}), "shipments_finished_total")
	if err != nil {
		return nil, err
	}

	incidents, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "incidents_total",
		Help: "Resolved incidents, labeled by risk type, severity and outcome.",
	}, []string{"type", "severity", "outcome"}), "incidents_total")
	if err != nil {
		return nil, err
	}

	payouts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "insurance_payout_amount_total",
		Help: "Sum of insurance payouts owed to shipment owners.",
	}), "insurance_payout_amount_total")
	if err != nil {
		return nil, err
	}

	convoy, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "convoy_membership_changes_total",
		Help: "Convoy mutations, labeled by operation.",
	}, []string{"op"}), "convoy_membership_changes_total")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		TicksTotal:        ticks,
		TickDuration:      tickDuration,
		ShipmentsActive:   active,
		ShipmentsCreated:  created,
		ShipmentsFinished: finished,
		Incidents:         incidents,
		PayoutsTotal:      payouts,
		ConvoyChanges:     convoy,
	}, nil
}

func (c *EngineCollector) ShipmentCreated() {
	if c == nil {
		return
	}
	c.ShipmentsCreated.Inc()
}

func (c *EngineCollector) TickCompleted(d time.Duration, active int) {
	if c == nil {
		return
	}
	c.TicksTotal.Inc()
	c.TickDuration.Observe(d.Seconds())
	c.ShipmentsActive.Set(float64(active))
}

func (c *EngineCollector) IncidentRecorded(riskType, severity, outcome string) {
	if c == nil {
		return
	}
	c.Incidents.WithLabelValues(riskType, severity, outcome).Inc()
}

func (c *EngineCollector) ShipmentFinished(status string) {
	if c == nil {
		return
	}
	c.ShipmentsFinished.WithLabelValues(status).Inc()
}

func (c *EngineCollector) PayoutRecorded(amount float64) {
	if c == nil || amount <= 0 {
		return
	}
	c.PayoutsTotal.Add(amount)
}

func (c *EngineCollector) ConvoyChanged(op string) {
	if c == nil {
		return
	}
	c.ConvoyChanges.WithLabelValues(op).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
