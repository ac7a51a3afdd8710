package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Amount owed to a shipment owner for one adjudicated incident.
type Payout struct {
	IncidentID  string
	ShipmentID  string
	CharacterID string
	Amount      decimal.Decimal
	RecordedAt  time.Time
}

// Port: the external ledger that credits insurance payouts. Recording the same
// incident twice must be a no-op.
type PayoutLedger interface {
	RecordPayout(ctx context.Context, p Payout) error
}
