package services

import (
	"maps"
	"math"
	"time"

	"shipment-risk-service/internal/domain"
)

// MaxRiskReduction caps any convoy's risk reduction.
const MaxRiskReduction = 0.9

// What a convoy is made of when its risk reduction is computed.
type ConvoyComposition struct {
	Shipments int
	Members   int
	Escorts   map[domain.EscortType]int
}

// RiskReductionFunc maps convoy composition to a reduction. Results are
// clamped to [0, MaxRiskReduction] by the coordinator.
type RiskReductionFunc func(ConvoyComposition) float64

// LossFractionFunc decides what share of a cargo line a MEDIUM incident destroys.
type LossFractionFunc func(item domain.CargoItem) float64

// Policy carries the tunable parts of the simulation.
type Policy struct {
	TickDuration       time.Duration
	DefaultTravelTime  time.Duration
	DelayTicks         map[domain.Severity]int
	RiskReduction      RiskReductionFunc
	MediumLossFraction LossFractionFunc
}

func DefaultPolicy() Policy {
	return Policy{
		TickDuration:      30 * time.Minute,
		DefaultTravelTime: 4 * time.Hour,
		DelayTicks:        map[domain.Severity]int{domain.SeverityMedium: 3},
		RiskReduction: LinearRiskReduction(0.10, 0.10, map[domain.EscortType]float64{
			domain.EscortLight: 0.05,
			domain.EscortArmed: 0.10,
			domain.EscortHeavy: 0.15,
		}),
		MediumLossFraction: FixedLossFraction(0.25),
	}
}

// LinearRiskReduction is base + perShipment × shipments + Σ escort bonuses.
func LinearRiskReduction(base, perShipment float64, perEscort map[domain.EscortType]float64) RiskReductionFunc {
	bonus := maps.Clone(perEscort)
	return func(c ConvoyComposition) float64 {
		v := base + perShipment*float64(c.Shipments)
		for t, n := range c.Escorts {
			v += bonus[t] * float64(n)
		}
		return v
	}
}

func FixedLossFraction(f float64) LossFractionFunc {
	return func(domain.CargoItem) float64 { return f }
}

// ClampReduction bounds v to [0, MaxRiskReduction].
func ClampReduction(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxRiskReduction {
		return MaxRiskReduction
	}
	return v
}

// withDefaults fills unset fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.TickDuration <= 0 {
		p.TickDuration = def.TickDuration
	}
	if p.DefaultTravelTime <= 0 {
		p.DefaultTravelTime = def.DefaultTravelTime
	}
	if p.DelayTicks == nil {
		p.DelayTicks = def.DelayTicks
	}
	if p.RiskReduction == nil {
		p.RiskReduction = def.RiskReduction
	}
	if p.MediumLossFraction == nil {
		p.MediumLossFraction = def.MediumLossFraction
	}
	return p
}

func (p Policy) delayFor(sev domain.Severity) int {
	if n := p.DelayTicks[sev]; n > 0 {
		return n
	}
	return 1
}
