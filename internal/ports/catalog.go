package ports

import (
	"context"
	"shipment-risk-service/internal/domain"
)

// Port: read-only access to reference data (routes, vehicle types, insurance plans).
// Lookups of unknown ids fail with domain.ErrNotFound.
type Catalog interface {
	GetRoute(ctx context.Context, id string) (domain.Route, error)
	GetVehicleType(ctx context.Context, id string) (domain.VehicleType, error)
	GetInsurancePlan(ctx context.Context, tier domain.PlanTier) (domain.InsurancePlan, error)
}

// Optional extension of Catalog that can enumerate its contents.
type CatalogLister interface {
	Catalog
	ListRoutes(ctx context.Context) ([]domain.Route, error)
	ListVehicleTypes(ctx context.Context) ([]domain.VehicleType, error)
	ListInsurancePlans(ctx context.Context) ([]domain.InsurancePlan, error)
}
