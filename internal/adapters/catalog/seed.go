package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"shipment-risk-service/internal/domain"
)

// Seed is the on-disk catalog format (data/seeds/catalog.json).
type Seed struct {
	Routes         []domain.Route         `json:"routes"`
	VehicleTypes   []domain.VehicleType   `json:"vehicle_types"`
	InsurancePlans []domain.InsurancePlan `json:"insurance_plans"`
}

// Load a catalog seed from a JSON file.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("load catalog seed: open %q: %w", path, err)
	}
	defer f.Close()

	seed, err := ParseSeed(f)
	if err != nil {
		return Seed{}, fmt.Errorf("load catalog seed %q: %w", path, err)
	}
	return seed, nil
}

func ParseSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("parse catalog seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

// Validate checks every entry and that routes only name known vehicle types.
func (s Seed) Validate() error {
	vehicles := make(map[string]struct{}, len(s.VehicleTypes))
	for i, v := range s.VehicleTypes {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("catalog seed: vehicle type #%d: %w", i+1, err)
		}
		if _, dup := vehicles[v.ID]; dup {
			return fmt.Errorf("catalog seed: duplicate vehicle type %q: %w", v.ID, domain.ErrInvalidCatalog)
		}
		vehicles[v.ID] = struct{}{}
	}

	routes := make(map[string]struct{}, len(s.Routes))
	for i, r := range s.Routes {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("catalog seed: route #%d: %w", i+1, err)
		}
		if _, dup := routes[r.ID]; dup {
			return fmt.Errorf("catalog seed: duplicate route %q: %w", r.ID, domain.ErrInvalidCatalog)
		}
		routes[r.ID] = struct{}{}
		for _, vt := range r.VehicleTypes {
			if _, ok := vehicles[vt]; !ok {
				return fmt.Errorf("catalog seed: route %q names unknown vehicle type %q: %w", r.ID, vt, domain.ErrInvalidCatalog)
			}
		}
	}

	tiers := make([]domain.PlanTier, 0, len(s.InsurancePlans))
	for i, p := range s.InsurancePlans {
		if _, err := domain.ParsePlanTier(string(p.Tier)); err != nil || p.Tier == "" {
			return fmt.Errorf("catalog seed: insurance plan #%d: tier %q: %w", i+1, p.Tier, domain.ErrInvalidCatalog)
		}
		if p.CoveragePercentage.IsNegative() || p.MaxCoverage.IsNegative() || p.CostPercentage.IsNegative() {
			return fmt.Errorf("catalog seed: insurance plan %s: negative terms: %w", p.Tier, domain.ErrInvalidCatalog)
		}
		if slices.Contains(tiers, p.Tier) {
			return fmt.Errorf("catalog seed: duplicate insurance plan %s: %w", p.Tier, domain.ErrInvalidCatalog)
		}
		tiers = append(tiers, p.Tier)
	}
	return nil
}
