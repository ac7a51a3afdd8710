package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/obs"
)

// SQLCatalog reads reference data from Postgres. Waypoints, risks and the
// vehicle type list of a route are stored as JSONB columns.
type SQLCatalog struct {
	DB *sql.DB
}

func NewSQLCatalog(db *sql.DB) *SQLCatalog {
	return &SQLCatalog{DB: db}
}

const routeColumns = `
	id, name, origin, destination, distance_km, estimated_time_hours,
	base_risk_level, cost_multiplier, waypoints, risks, vehicle_types`

const vehicleColumns = `
	id, name, speed_multiplier, capacity_weight, capacity_volume,
	risk_modifier, cost_multiplier`

const planColumns = `tier, coverage_percentage, max_coverage, cost_percentage, description`

type rowScanner interface {
	Scan(dest ...any) error
}

func (c *SQLCatalog) GetRoute(ctx context.Context, id string) (_ domain.Route, err error) {
	defer obs.Time(ctx, "catalog.sql.GetRoute")(&err)

	if c.DB == nil {
		return domain.Route{}, errors.New("sql catalog: db is nil")
	}
	row := c.DB.QueryRowContext(ctx, `SELECT`+routeColumns+` FROM routes WHERE id = $1;`, id)
	r, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Route{}, fmt.Errorf("route %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Route{}, fmt.Errorf("get route %q: %w", id, err)
	}
	return r, nil
}

func (c *SQLCatalog) GetVehicleType(ctx context.Context, id string) (_ domain.VehicleType, err error) {
	defer obs.Time(ctx, "catalog.sql.GetVehicleType")(&err)

	if c.DB == nil {
		return domain.VehicleType{}, errors.New("sql catalog: db is nil")
	}
	row := c.DB.QueryRowContext(ctx, `SELECT`+vehicleColumns+` FROM vehicle_types WHERE id = $1;`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VehicleType{}, fmt.Errorf("vehicle type %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.VehicleType{}, fmt.Errorf("get vehicle type %q: %w", id, err)
	}
	return v, nil
}

func (c *SQLCatalog) GetInsurancePlan(ctx context.Context, tier domain.PlanTier) (_ domain.InsurancePlan, err error) {
	defer obs.Time(ctx, "catalog.sql.GetInsurancePlan")(&err)

	if c.DB == nil {
		return domain.InsurancePlan{}, errors.New("sql catalog: db is nil")
	}
	row := c.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM insurance_plans WHERE tier = $1;`, string(tier))
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		if tier == domain.PlanNone {
			return domain.InsurancePlan{Tier: domain.PlanNone}, nil
		}
		return domain.InsurancePlan{}, fmt.Errorf("insurance plan %q: %w", tier, domain.ErrNotFound)
	}
	if err != nil {
		return domain.InsurancePlan{}, fmt.Errorf("get insurance plan %q: %w", tier, err)
	}
	return p, nil
}

func (c *SQLCatalog) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	if c.DB == nil {
		return nil, errors.New("sql catalog: db is nil")
	}
	rows, err := c.DB.QueryContext(ctx, `SELECT`+routeColumns+` FROM routes ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("list routes: query routes table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Route, 0, 16)
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("list routes: scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list routes: row iteration: %w", err)
	}
	return out, nil
}

func (c *SQLCatalog) ListVehicleTypes(ctx context.Context) ([]domain.VehicleType, error) {
	if c.DB == nil {
		return nil, errors.New("sql catalog: db is nil")
	}
	rows, err := c.DB.QueryContext(ctx, `SELECT`+vehicleColumns+` FROM vehicle_types ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("list vehicle types: query vehicle_types table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.VehicleType, 0, 8)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("list vehicle types: scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vehicle types: row iteration: %w", err)
	}
	return out, nil
}

func (c *SQLCatalog) ListInsurancePlans(ctx context.Context) ([]domain.InsurancePlan, error) {
	if c.DB == nil {
		return nil, errors.New("sql catalog: db is nil")
	}
	rows, err := c.DB.QueryContext(ctx, `SELECT `+planColumns+` FROM insurance_plans ORDER BY tier;`)
	if err != nil {
		return nil, fmt.Errorf("list insurance plans: query insurance_plans table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.InsurancePlan, 0, 4)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("list insurance plans: scan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list insurance plans: row iteration: %w", err)
	}
	return out, nil
}

// Import upserts every entry of the seed in one transaction.
func (c *SQLCatalog) Import(ctx context.Context, seed Seed) error {
	if c.DB == nil {
		return errors.New("sql catalog: db is nil")
	}
	if err := seed.Validate(); err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import catalog: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range seed.VehicleTypes {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO vehicle_types (`+vehicleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			speed_multiplier = EXCLUDED.speed_multiplier,
			capacity_weight = EXCLUDED.capacity_weight,
			capacity_volume = EXCLUDED.capacity_volume,
			risk_modifier = EXCLUDED.risk_modifier,
			cost_multiplier = EXCLUDED.cost_multiplier;
		`, v.ID, v.Name, v.SpeedMultiplier, v.CapacityWeight, v.CapacityVolume, v.RiskModifier, v.CostMultiplier)
		if err != nil {
			return fmt.Errorf("import catalog: vehicle type %q: %w", v.ID, err)
		}
	}

	for _, r := range seed.Routes {
		r = r.Normalized()
		waypoints, err := json.Marshal(r.Waypoints)
		if err != nil {
			return fmt.Errorf("import catalog: route %q: encode waypoints: %w", r.ID, err)
		}
		risks, err := json.Marshal(r.Risks)
		if err != nil {
			return fmt.Errorf("import catalog: route %q: encode risks: %w", r.ID, err)
		}
		vehicles, err := json.Marshal(r.VehicleTypes)
		if err != nil {
			return fmt.Errorf("import catalog: route %q: encode vehicle types: %w", r.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
		INSERT INTO routes (`+routeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			origin = EXCLUDED.origin,
			destination = EXCLUDED.destination,
			distance_km = EXCLUDED.distance_km,
			estimated_time_hours = EXCLUDED.estimated_time_hours,
			base_risk_level = EXCLUDED.base_risk_level,
			cost_multiplier = EXCLUDED.cost_multiplier,
			waypoints = EXCLUDED.waypoints,
			risks = EXCLUDED.risks,
			vehicle_types = EXCLUDED.vehicle_types;
		`, r.ID, r.Name, r.Origin, r.Destination, r.DistanceKm, r.EstimatedTimeHours,
			string(r.BaseRiskLevel), r.CostMultiplier, waypoints, risks, vehicles)
		if err != nil {
			return fmt.Errorf("import catalog: route %q: %w", r.ID, err)
		}
	}

	for _, p := range seed.InsurancePlans {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO insurance_plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tier) DO UPDATE
		SET coverage_percentage = EXCLUDED.coverage_percentage,
			max_coverage = EXCLUDED.max_coverage,
			cost_percentage = EXCLUDED.cost_percentage,
			description = EXCLUDED.description;
		`, string(p.Tier), p.CoveragePercentage, p.MaxCoverage, p.CostPercentage, p.Description)
		if err != nil {
			return fmt.Errorf("import catalog: insurance plan %s: %w", p.Tier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import catalog: commit: %w", err)
	}
	return nil
}

func scanRoute(row rowScanner) (domain.Route, error) {
	var r domain.Route
	var baseRisk string
	var waypoints, risks, vehicles []byte
	err := row.Scan(
		&r.ID, &r.Name, &r.Origin, &r.Destination, &r.DistanceKm, &r.EstimatedTimeHours,
		&baseRisk, &r.CostMultiplier, &waypoints, &risks, &vehicles,
	)
	if err != nil {
		return domain.Route{}, err
	}
	r.BaseRiskLevel = domain.Severity(baseRisk)

	if err := json.Unmarshal(waypoints, &r.Waypoints); err != nil {
		return domain.Route{}, fmt.Errorf("route %q: decode waypoints: %w", r.ID, err)
	}
	if err := json.Unmarshal(risks, &r.Risks); err != nil {
		return domain.Route{}, fmt.Errorf("route %q: decode risks: %w", r.ID, err)
	}
	if err := json.Unmarshal(vehicles, &r.VehicleTypes); err != nil {
		return domain.Route{}, fmt.Errorf("route %q: decode vehicle types: %w", r.ID, err)
	}
	return r.Normalized(), nil
}

func scanVehicle(row rowScanner) (domain.VehicleType, error) {
	var v domain.VehicleType
	err := row.Scan(&v.ID, &v.Name, &v.SpeedMultiplier, &v.CapacityWeight, &v.CapacityVolume, &v.RiskModifier, &v.CostMultiplier)
	return v, err
}

func scanPlan(row rowScanner) (domain.InsurancePlan, error) {
	var p domain.InsurancePlan
	var tier string
	err := row.Scan(&tier, &p.CoveragePercentage, &p.MaxCoverage, &p.CostPercentage, &p.Description)
	p.Tier = domain.PlanTier(tier)
	return p, err
}
