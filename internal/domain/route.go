package domain

import (
	"fmt"
	"slices"
	"strings"
)

// A named point along a route. PositionPct is how far along the route
// (0-100, exclusive) the waypoint sits.
type Waypoint struct {
	Sequence    int     `json:"sequence"`
	Name        string  `json:"name"`
	PositionPct float64 `json:"position_pct"`
}

// A probabilistic hazard declared on a route. Legs restricts the risk to
// specific legs; empty means every leg.
type RouteRisk struct {
	Type        RiskType `json:"type"`
	Probability float64  `json:"probability"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description,omitempty"`
	Legs        []int    `json:"legs,omitempty"`
}

// AppliesTo reports whether the risk is evaluated on the given leg.
func (r RouteRisk) AppliesTo(leg int) bool {
	return len(r.Legs) == 0 || slices.Contains(r.Legs, leg)
}

// Pre-computed route between two locations. Reference data, read-only to the engine.
type Route struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Origin             string      `json:"origin"`
	Destination        string      `json:"destination"`
	DistanceKm         float64     `json:"distance_km"`
	EstimatedTimeHours float64     `json:"estimated_time_hours"`
	BaseRiskLevel      Severity    `json:"base_risk_level,omitempty"`
	CostMultiplier     float64     `json:"cost_multiplier"`
	Waypoints          []Waypoint  `json:"waypoints"`
	Risks              []RouteRisk `json:"risks"`
	VehicleTypes       []string    `json:"vehicle_types"`
}

// Supports reports whether the vehicle type may travel this route.
func (r Route) Supports(vehicleTypeID string) bool {
	return slices.Contains(r.VehicleTypes, vehicleTypeID)
}

// LegCount is the number of segments between origin, waypoints and destination.
func (r Route) LegCount() int {
	return len(r.Waypoints) + 1
}

// LegAt returns the leg containing the given progress percentage.
// Waypoints are expected to be normalized.
func (r Route) LegAt(progress float64) int {
	leg := 0
	for _, wp := range r.Waypoints {
		if progress >= wp.PositionPct {
			leg++
		}
	}
	if leg > len(r.Waypoints) {
		leg = len(r.Waypoints)
	}
	return leg
}

// Validate rejects configuration errors. It runs at shipment creation so bad
// catalog data never surfaces mid-simulation.
func (r Route) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("route: id must not be empty: %w", ErrInvalidCatalog)
	}
	if r.EstimatedTimeHours < 0 {
		return fmt.Errorf("route %q: negative estimated time: %w", r.ID, ErrInvalidCatalog)
	}
	if r.CostMultiplier < 0 {
		return fmt.Errorf("route %q: negative cost multiplier: %w", r.ID, ErrInvalidCatalog)
	}
	for i, risk := range r.Risks {
		if risk.Probability < 0 || risk.Probability > 1 {
			return fmt.Errorf("route %q: risk #%d probability %v outside [0,1]: %w", r.ID, i+1, risk.Probability, ErrInvalidCatalog)
		}
		if _, err := ParseSeverity(string(risk.Severity)); err != nil {
			return fmt.Errorf("route %q: risk #%d: %w", r.ID, i+1, ErrInvalidCatalog)
		}
		if _, err := ParseRiskType(string(risk.Type)); err != nil {
			return fmt.Errorf("route %q: risk #%d: %w", r.ID, i+1, ErrInvalidCatalog)
		}
	}
	for i, wp := range r.Waypoints {
		if wp.PositionPct < 0 || wp.PositionPct >= 100 {
			return fmt.Errorf("route %q: waypoint #%d position %v outside [0,100): %w", r.ID, i+1, wp.PositionPct, ErrInvalidCatalog)
		}
	}
	return nil
}

// Normalized returns a copy with waypoints ordered by sequence and positions
// filled in. When any waypoint lacks a position, all are spaced evenly.
func (r Route) Normalized() Route {
	out := r
	out.Waypoints = slices.Clone(r.Waypoints)
	if r.Risks != nil {
		out.Risks = make([]RouteRisk, len(r.Risks))
		for i, risk := range r.Risks {
			risk.Legs = slices.Clone(risk.Legs)
			out.Risks[i] = risk
		}
	}
	out.VehicleTypes = slices.Clone(r.VehicleTypes)

	slices.SortStableFunc(out.Waypoints, func(a, b Waypoint) int { return a.Sequence - b.Sequence })

	even := false
	prev := 0.0
	for _, wp := range out.Waypoints {
		if wp.PositionPct <= prev {
			even = true
			break
		}
		prev = wp.PositionPct
	}
	if even {
		step := 100.0 / float64(len(out.Waypoints)+1)
		for i := range out.Waypoints {
			out.Waypoints[i].PositionPct = step * float64(i+1)
		}
	}
	return out
}
