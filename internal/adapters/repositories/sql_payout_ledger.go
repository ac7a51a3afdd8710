package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shipment-risk-service/internal/platform/obs"
	"shipment-risk-service/internal/ports"
)

// SQLPayoutLedger records payouts in insurance_payouts, keyed by incident.
type SQLPayoutLedger struct {
	DB *sql.DB
}

func NewSQLPayoutLedger(db *sql.DB) *SQLPayoutLedger {
	return &SQLPayoutLedger{DB: db}
}

func (l *SQLPayoutLedger) RecordPayout(ctx context.Context, p ports.Payout) (err error) {
	defer obs.Time(ctx, "ledger.sql.RecordPayout")(&err)

	if l.DB == nil {
		return errors.New("payout ledger: db is nil")
	}

	_, err = l.DB.ExecContext(ctx, `
	INSERT INTO insurance_payouts (incident_id, shipment_id, character_id, amount, recorded_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (incident_id) DO NOTHING;
	`, p.IncidentID, p.ShipmentID, p.CharacterID, p.Amount, p.RecordedAt)
	if err != nil {
		return fmt.Errorf("record payout for incident %s: %w", p.IncidentID, err)
	}
	return nil
}
