package services

import (
	"context"
	"math"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/logging"
)

// Outcome of one leg's risk roll. Risk is only meaningful when Triggered.
type LegRoll struct {
	Triggered   bool
	Risk        domain.RouteRisk
	Probability float64
}

// RiskEvaluator rolls a route's risks for one leg.
type RiskEvaluator struct {
	log logging.Logger
}

func NewRiskEvaluator(log logging.Logger) RiskEvaluator {
	if log == nil {
		log = logging.Noop()
	}
	return RiskEvaluator{log: log}
}

// EffectiveProbability is clamp(p × riskModifier × (1 − reduction), 0, 1).
func EffectiveProbability(p, riskModifier, reduction float64) float64 {
	v := p * riskModifier * (1 - reduction)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 1)
}

// EvaluateLeg rolls every risk that applies to the leg, in declaration order.
// Each risk consumes one draw whether or not an earlier one fired, but only
// the first risk that fires is returned.
func (e RiskEvaluator) EvaluateLeg(
	ctx context.Context,
	route domain.Route,
	legIndex int,
	vehicle domain.VehicleType,
	reduction float64,
	rng RNG,
) LegRoll {
	modifier := vehicle.RiskModifier
	if modifier < 0 {
		e.log.Warn(ctx, "negative vehicle risk modifier treated as zero",
			logging.String("vehicle_type", vehicle.ID),
			logging.Float("risk_modifier", modifier),
		)
		modifier = 0
	}
	reduction = ClampReduction(reduction)

	var roll LegRoll
	for _, risk := range route.Risks {
		if !risk.AppliesTo(legIndex) {
			continue
		}

		p := EffectiveProbability(risk.Probability, modifier, reduction)
		draw := rng.Float64()
		if !roll.Triggered && draw < p {
			roll = LegRoll{Triggered: true, Risk: risk, Probability: p}
		}
	}
	return roll
}
