package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EscortRequest struct {
	ID          string          `json:"id"`
	ShipmentID  string          `json:"shipment_id"`
	Type        EscortType      `json:"type"`
	Payment     decimal.Decimal `json:"payment"`
	RequestedAt time.Time       `json:"requested_at"`
}
