package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the Postgres schema for the catalog, shipments, convoys and payouts.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createVehicleTypesQuery := `
	CREATE TABLE IF NOT EXISTS vehicle_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		speed_multiplier DOUBLE PRECISION NOT NULL,
		capacity_weight DOUBLE PRECISION NOT NULL,
		capacity_volume DOUBLE PRECISION NOT NULL,
		risk_modifier DOUBLE PRECISION NOT NULL,
		cost_multiplier DOUBLE PRECISION NOT NULL
	);
	`

	createRoutesQuery := `
	CREATE TABLE IF NOT EXISTS routes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		estimated_time_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
		base_risk_level TEXT NOT NULL DEFAULT '',
		cost_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1,
		waypoints JSONB NOT NULL DEFAULT '[]',
		risks JSONB NOT NULL DEFAULT '[]',
		vehicle_types JSONB NOT NULL DEFAULT '[]'
	);
	`

	createInsurancePlansQuery := `
	CREATE TABLE IF NOT EXISTS insurance_plans (
		tier TEXT PRIMARY KEY,
		coverage_percentage NUMERIC(6, 2) NOT NULL,
		max_coverage NUMERIC(18, 2) NOT NULL,
		cost_percentage NUMERIC(6, 2) NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);
	`

	createShipmentsQuery := `
	CREATE TABLE IF NOT EXISTS shipments (
		id TEXT PRIMARY KEY,
		character_id TEXT NOT NULL,
		route_id TEXT NOT NULL,
		vehicle_type_id TEXT NOT NULL,
		status TEXT NOT NULL,
		progress_percentage DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL
	);
	`

	createIncidentsQuery := `
	CREATE TABLE IF NOT EXISTS shipment_incidents (
		id TEXT PRIMARY KEY,
		shipment_id TEXT NOT NULL REFERENCES shipments(id),
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		outcome TEXT NOT NULL,
		leg_index INTEGER NOT NULL,
		insurance_claim BOOLEAN NOT NULL,
		payout NUMERIC(18, 2) NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	);
	`

	createTrackingQuery := `
	CREATE TABLE IF NOT EXISTS shipment_tracking_events (
		shipment_id TEXT NOT NULL REFERENCES shipments(id),
		seq INTEGER NOT NULL,
		location TEXT NOT NULL,
		event TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (shipment_id, seq)
	);
	`

	createConvoysQuery := `
	CREATE TABLE IF NOT EXISTS convoys (
		id TEXT PRIMARY KEY,
		leader_id TEXT NOT NULL,
		status TEXT NOT NULL,
		risk_reduction DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		doc JSONB NOT NULL
	);
	`

	createPayoutsQuery := `
	CREATE TABLE IF NOT EXISTS insurance_payouts (
		incident_id TEXT PRIMARY KEY,
		shipment_id TEXT NOT NULL,
		character_id TEXT NOT NULL,
		amount NUMERIC(18, 2) NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	);
	`

	createIndexesQuery := `
	CREATE INDEX IF NOT EXISTS idx_shipments_character_status
	ON shipments(character_id, status);
	`

	statements := []string{
		createVehicleTypesQuery,
		createRoutesQuery,
		createInsurancePlansQuery,
		createShipmentsQuery,
		createIncidentsQuery,
		createTrackingQuery,
		createConvoysQuery,
		createPayoutsQuery,
		createIndexesQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
