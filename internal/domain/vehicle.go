package domain

import (
	"fmt"
	"strings"
)

// Reference data describing how a class of vehicle moves and carries cargo.
// Immutable at runtime; shipments keep their own copy.
type VehicleType struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	SpeedMultiplier float64 `json:"speed_multiplier"`
	CapacityWeight  float64 `json:"capacity_weight"`
	CapacityVolume  float64 `json:"capacity_volume"`
	RiskModifier    float64 `json:"risk_modifier"`
	CostMultiplier  float64 `json:"cost_multiplier"`
}

// Validate rejects vehicle data the simulation cannot run with.
// A negative RiskModifier is tolerated here; risk evaluation clamps it to zero.
func (v VehicleType) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return fmt.Errorf("vehicle type: id must not be empty: %w", ErrInvalidCatalog)
	}
	if v.SpeedMultiplier <= 0 {
		return fmt.Errorf("vehicle type %q: speed multiplier %v must be positive: %w", v.ID, v.SpeedMultiplier, ErrInvalidCatalog)
	}
	if v.CapacityWeight < 0 || v.CapacityVolume < 0 {
		return fmt.Errorf("vehicle type %q: capacities must not be negative: %w", v.ID, ErrInvalidCatalog)
	}
	return nil
}
