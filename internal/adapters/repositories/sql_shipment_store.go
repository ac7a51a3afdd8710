package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/obs"
	"shipment-risk-service/internal/ports"
)

// SQLShipmentStore persists each shipment as a JSONB document with its
// queryable fields broken out. Incidents and tracking events are also written
// to their own append-only tables.
type SQLShipmentStore struct {
	DB *sql.DB
}

func NewSQLShipmentStore(db *sql.DB) *SQLShipmentStore {
	return &SQLShipmentStore{DB: db}
}

func (s *SQLShipmentStore) SaveShipment(ctx context.Context, sh domain.Shipment) (err error) {
	defer obs.Time(ctx, "shipments.sql.Save")(&err)

	if s.DB == nil {
		return errors.New("shipment store: db is nil")
	}

	doc, err := json.Marshal(sh)
	if err != nil {
		return fmt.Errorf("save shipment %s: encode: %w", sh.ID, err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save shipment %s: db begin: %w", sh.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO shipments (
		id, character_id, route_id, vehicle_type_id, status,
		progress_percentage, created_at, updated_at, doc
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status,
		progress_percentage = EXCLUDED.progress_percentage,
		updated_at = EXCLUDED.updated_at,
		doc = EXCLUDED.doc;
	`, sh.ID, sh.CharacterID, sh.RouteID, sh.VehicleTypeID, string(sh.Status),
		sh.ProgressPercentage, sh.CreatedAt, sh.UpdatedAt, doc)
	if err != nil {
		return fmt.Errorf("save shipment %s: upsert: %w", sh.ID, err)
	}

	if len(sh.Incidents) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shipment_incidents (
			id, shipment_id, type, severity, outcome, leg_index,
			insurance_claim, payout, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING;
		`)
		if err != nil {
			return fmt.Errorf("save shipment %s: prepare incidents: %w", sh.ID, err)
		}
		defer stmt.Close()

		for _, inc := range sh.Incidents {
			if _, err := stmt.ExecContext(ctx, inc.ID, sh.ID, string(inc.Type), string(inc.Severity),
				string(inc.Outcome), inc.LegIndex, inc.InsuranceClaim, inc.Payout, inc.OccurredAt); err != nil {
				return fmt.Errorf("save shipment %s: incident %s: %w", sh.ID, inc.ID, err)
			}
		}
	}

	if len(sh.TrackingEvents) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shipment_tracking_events (shipment_id, seq, location, event, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shipment_id, seq) DO NOTHING;
		`)
		if err != nil {
			return fmt.Errorf("save shipment %s: prepare tracking: %w", sh.ID, err)
		}
		defer stmt.Close()

		for i, ev := range sh.TrackingEvents {
			if _, err := stmt.ExecContext(ctx, sh.ID, i, ev.Location, ev.Event, ev.OccurredAt); err != nil {
				return fmt.Errorf("save shipment %s: tracking event #%d: %w", sh.ID, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save shipment %s: commit: %w", sh.ID, err)
	}
	return nil
}

func (s *SQLShipmentStore) GetShipment(ctx context.Context, id string) (_ domain.Shipment, err error) {
	defer obs.Time(ctx, "shipments.sql.Get")(&err)

	if s.DB == nil {
		return domain.Shipment{}, errors.New("shipment store: db is nil")
	}

	var doc []byte
	err = s.DB.QueryRowContext(ctx, `SELECT doc FROM shipments WHERE id = $1;`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Shipment{}, fmt.Errorf("shipment %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Shipment{}, fmt.Errorf("get shipment %q: %w", id, err)
	}

	var sh domain.Shipment
	if err := json.Unmarshal(doc, &sh); err != nil {
		return domain.Shipment{}, fmt.Errorf("get shipment %q: decode: %w", id, err)
	}
	return sh, nil
}

func (s *SQLShipmentStore) ListShipments(ctx context.Context, f ports.ShipmentFilter) (_ []domain.Shipment, err error) {
	defer obs.Time(ctx, "shipments.sql.List")(&err)

	if s.DB == nil {
		return nil, errors.New("shipment store: db is nil")
	}

	var (
		where []string
		args  []any
	)
	if f.CharacterID != "" {
		args = append(args, f.CharacterID)
		where = append(where, fmt.Sprintf("character_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ActiveOnly {
		frozen := []string{
			string(domain.StatusDelivered),
			string(domain.StatusLost),
			string(domain.StatusCancelled),
			string(domain.StatusInternalError),
		}
		args = append(args, frozen)
		where = append(where, fmt.Sprintf("NOT (status = ANY($%d::text[]))", len(args)))
	}

	q := `SELECT doc FROM shipments`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at, id;`

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list shipments: query shipments table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Shipment, 0, 32)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("list shipments: scan row: %w", err)
		}
		var sh domain.Shipment
		if err := json.Unmarshal(doc, &sh); err != nil {
			return nil, fmt.Errorf("list shipments: decode: %w", err)
		}
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shipments: row iteration: %w", err)
	}
	return out, nil
}
