package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type CargoLoss struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Represents a triggered adverse event on one leg of a shipment.
// Created once per triggered risk roll and immutable after resolution.
type Incident struct {
	ID             string          `json:"id"`
	ShipmentID     string          `json:"shipment_id"`
	Type           RiskType        `json:"type"`
	Severity       Severity        `json:"severity"`
	Outcome        Outcome         `json:"outcome"`
	LegIndex       int             `json:"leg_index"`
	Description    string          `json:"description,omitempty"`
	Resolved       bool            `json:"resolved"`
	InsuranceClaim bool            `json:"insurance_claim"`
	Payout         decimal.Decimal `json:"payout"`
	CargoLost      []CargoLoss     `json:"cargo_lost"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func (i Incident) Clone() Incident {
	out := i
	out.CargoLost = slices.Clone(i.CargoLost)
	return out
}
