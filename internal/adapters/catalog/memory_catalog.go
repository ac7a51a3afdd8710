package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"shipment-risk-service/internal/domain"
)

// MemoryCatalog holds reference data in maps. Safe for concurrent use.
type MemoryCatalog struct {
	mu       sync.RWMutex
	routes   map[string]domain.Route
	vehicles map[string]domain.VehicleType
	plans    map[domain.PlanTier]domain.InsurancePlan
}

func NewMemoryCatalog(seed Seed) *MemoryCatalog {
	c := &MemoryCatalog{
		routes:   make(map[string]domain.Route, len(seed.Routes)),
		vehicles: make(map[string]domain.VehicleType, len(seed.VehicleTypes)),
		plans:    make(map[domain.PlanTier]domain.InsurancePlan, len(seed.InsurancePlans)),
	}
	for _, r := range seed.Routes {
		c.PutRoute(r)
	}
	for _, v := range seed.VehicleTypes {
		c.PutVehicleType(v)
	}
	for _, p := range seed.InsurancePlans {
		c.PutInsurancePlan(p)
	}
	return c
}

func (c *MemoryCatalog) PutRoute(r domain.Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[r.ID] = r.Normalized()
}

func (c *MemoryCatalog) PutVehicleType(v domain.VehicleType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vehicles[v.ID] = v
}

func (c *MemoryCatalog) PutInsurancePlan(p domain.InsurancePlan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[p.Tier] = p
}

func (c *MemoryCatalog) GetRoute(_ context.Context, id string) (domain.Route, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.routes[id]
	if !ok {
		return domain.Route{}, fmt.Errorf("route %q: %w", id, domain.ErrNotFound)
	}
	return r.Normalized(), nil
}

func (c *MemoryCatalog) GetVehicleType(_ context.Context, id string) (domain.VehicleType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vehicles[id]
	if !ok {
		return domain.VehicleType{}, fmt.Errorf("vehicle type %q: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

// GetInsurancePlan always knows the NONE tier, even if the seed omits it.
func (c *MemoryCatalog) GetInsurancePlan(_ context.Context, tier domain.PlanTier) (domain.InsurancePlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plans[tier]
	if !ok {
		if tier == domain.PlanNone {
			return domain.InsurancePlan{Tier: domain.PlanNone}, nil
		}
		return domain.InsurancePlan{}, fmt.Errorf("insurance plan %q: %w", tier, domain.ErrNotFound)
	}
	return p, nil
}

func (c *MemoryCatalog) ListRoutes(context.Context) ([]domain.Route, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Route, 0, len(c.routes))
	for _, r := range c.routes {
		out = append(out, r.Normalized())
	}
	slices.SortFunc(out, func(a, b domain.Route) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (c *MemoryCatalog) ListVehicleTypes(context.Context) ([]domain.VehicleType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.VehicleType, 0, len(c.vehicles))
	for _, v := range c.vehicles {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b domain.VehicleType) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (c *MemoryCatalog) ListInsurancePlans(context.Context) ([]domain.InsurancePlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.InsurancePlan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.InsurancePlan) int { return cmp.Compare(a.Tier, b.Tier) })
	return out, nil
}
