package services

import (
	"fmt"
	"math"
	"strings"

	"shipment-risk-service/internal/domain"
)

// What an incident does to a shipment, before it is applied.
type Resolution struct {
	Outcome    domain.Outcome
	Losses     []domain.CargoLoss
	DelayTicks int
	Event      string
}

// IncidentResolver maps severity to an outcome and cargo losses.
//
//   - LOW: near miss, no loss, shipment continues.
//   - MEDIUM: fragile lines are lost in full, then one random non-fragile line
//     loses a policy-defined fraction (at least one unit); shipment is delayed.
//   - HIGH, CRITICAL: everything is lost, fragile lines first; shipment is lost.
type IncidentResolver struct {
	policy Policy
}

func NewIncidentResolver(policy Policy) IncidentResolver {
	return IncidentResolver{policy: policy.withDefaults()}
}

// Resolve does not modify the shipment. rng is the leg's stream, already
// advanced past the risk roll.
func (r IncidentResolver) Resolve(
	s domain.Shipment,
	riskType domain.RiskType,
	severity domain.Severity,
	rng RNG,
) (Resolution, error) {
	kind := strings.ToLower(string(riskType))

	switch severity {
	case domain.SeverityLow:
		return Resolution{
			Outcome: domain.OutcomeContinue,
			Event:   fmt.Sprintf("near miss: %s", kind),
		}, nil

	case domain.SeverityMedium:
		losses := fullLosses(s.Cargo, true)

		candidates := make([]int, 0, len(s.Cargo))
		for i, c := range s.Cargo {
			if !c.Fragile && c.Quantity > 0 {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) > 0 {
			item := s.Cargo[candidates[rng.IntN(len(candidates))]]
			losses = append(losses, domain.CargoLoss{
				ItemID:   item.ItemID,
				Quantity: partialLoss(item, r.policy.MediumLossFraction(item)),
			})
		}

		delay := r.policy.delayFor(domain.SeverityMedium)
		return Resolution{
			Outcome:    domain.OutcomeDelay,
			Losses:     losses,
			DelayTicks: delay,
			Event:      fmt.Sprintf("%s (medium): cargo damaged, delayed %d ticks", kind, delay),
		}, nil

	case domain.SeverityHigh, domain.SeverityCritical:
		losses := fullLosses(s.Cargo, true)
		losses = append(losses, fullLosses(s.Cargo, false)...)
		return Resolution{
			Outcome: domain.OutcomeLose,
			Losses:  losses,
			Event:   fmt.Sprintf("%s (%s): shipment lost", kind, strings.ToLower(string(severity))),
		}, nil

	default:
		return Resolution{}, fmt.Errorf("resolve incident: severity %q: %w", severity, domain.ErrInvalidArgument)
	}
}

// fullLosses loses every remaining unit of lines whose fragility matches.
func fullLosses(cargo []domain.CargoItem, fragile bool) []domain.CargoLoss {
	var out []domain.CargoLoss
	for _, c := range cargo {
		if c.Fragile == fragile && c.Quantity > 0 {
			out = append(out, domain.CargoLoss{ItemID: c.ItemID, Quantity: c.Quantity})
		}
	}
	return out
}

// partialLoss is floor(quantity × fraction), at least 1 and at most quantity.
func partialLoss(item domain.CargoItem, fraction float64) int {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	q := int(math.Floor(float64(item.Quantity) * math.Min(fraction, 1)))
	if q < 1 {
		q = 1
	}
	if q > item.Quantity {
		q = item.Quantity
	}
	return q
}

// checkLosses verifies no line loses more than it still holds.
func checkLosses(cargo []domain.CargoItem, losses []domain.CargoLoss) error {
	remaining := make(map[string]int, len(cargo))
	for _, c := range cargo {
		remaining[c.ItemID] = c.Quantity
	}
	for _, l := range losses {
		left, ok := remaining[l.ItemID]
		if !ok {
			return fmt.Errorf("cargo loss for unknown item %q: %w", l.ItemID, domain.ErrInvariantViolation)
		}
		if l.Quantity <= 0 || l.Quantity > left {
			return fmt.Errorf("cargo loss of %d %q exceeds remaining %d: %w", l.Quantity, l.ItemID, left, domain.ErrInvariantViolation)
		}
		remaining[l.ItemID] = left - l.Quantity
	}
	return nil
}

// applyLosses subtracts losses from the shipment's cargo. Call checkLosses first.
func applyLosses(s *domain.Shipment, losses []domain.CargoLoss) {
	for _, l := range losses {
		if i := s.CargoIndex(l.ItemID); i >= 0 {
			s.Cargo[i].Quantity -= l.Quantity
		}
	}
}
