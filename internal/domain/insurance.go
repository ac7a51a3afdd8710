package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Catalog definition of an insurance plan. Percentages are 0-100.
type InsurancePlan struct {
	Tier               PlanTier        `json:"tier"`
	CoveragePercentage decimal.Decimal `json:"coverage_percentage"`
	MaxCoverage        decimal.Decimal `json:"max_coverage"`
	CostPercentage     decimal.Decimal `json:"cost_percentage"`
	Description        string          `json:"description,omitempty"`
}

// Insurance purchased for one shipment. Plan terms and cargo value are
// snapshotted at purchase time.
type Insurance struct {
	Plan               PlanTier        `json:"plan"`
	CoveragePercentage decimal.Decimal `json:"coverage_percentage"`
	MaxCoverage        decimal.Decimal `json:"max_coverage"`
	TotalCargoValue    decimal.Decimal `json:"total_cargo_value"`
	Cost               decimal.Decimal `json:"cost"`
	PurchasedAt        time.Time       `json:"purchased_at"`
}
