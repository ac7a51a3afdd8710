package services

import (
	"fmt"
	"time"

	"shipment-risk-service/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// InsuranceAdjudicator prices insurance at purchase and computes payouts.
// It only computes amounts owed; crediting happens in the payout ledger.
type InsuranceAdjudicator struct{}

// Quote snapshots plan terms and cargo value. Returns nil for the NONE plan.
func (InsuranceAdjudicator) Quote(plan domain.InsurancePlan, cargo []domain.CargoItem, at time.Time) *domain.Insurance {
	if plan.Tier == "" || plan.Tier == domain.PlanNone {
		return nil
	}

	total := domain.TotalValue(cargo)
	return &domain.Insurance{
		Plan:               plan.Tier,
		CoveragePercentage: plan.CoveragePercentage,
		MaxCoverage:        plan.MaxCoverage,
		TotalCargoValue:    total,
		Cost:               total.Mul(plan.CostPercentage).Div(hundred).Round(0),
		PurchasedAt:        at,
	}
}

// Adjudicate resolves inc against the shipment's insurance and records the
// payout on it. payout = min(lossValue × coverage / 100, maxCoverage).
// An incident can only be adjudicated once.
func (InsuranceAdjudicator) Adjudicate(s domain.Shipment, inc *domain.Incident) (decimal.Decimal, error) {
	if inc.Resolved {
		return decimal.Zero, fmt.Errorf("adjudicate incident %s: %w", inc.ID, domain.ErrIncidentAlreadyResolved)
	}
	inc.Resolved = true
	inc.Payout = decimal.Zero
	inc.InsuranceClaim = false

	if s.Insurance == nil {
		return decimal.Zero, nil
	}

	payout := LossValue(s.Cargo, inc.CargoLost).Mul(s.Insurance.CoveragePercentage).Div(hundred)
	payout = decimal.Min(payout, s.Insurance.MaxCoverage).Truncate(2)
	if !payout.IsPositive() {
		return decimal.Zero, nil
	}

	inc.Payout = payout
	inc.InsuranceClaim = true
	return payout, nil
}

// LossValue is Σ lost quantity × unit value of the matching cargo line.
func LossValue(cargo []domain.CargoItem, losses []domain.CargoLoss) decimal.Decimal {
	unit := make(map[string]decimal.Decimal, len(cargo))
	for _, c := range cargo {
		unit[c.ItemID] = c.Value
	}

	total := decimal.Zero
	for _, l := range losses {
		total = total.Add(unit[l.ItemID].Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
