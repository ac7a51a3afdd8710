package ports

import (
	"context"
	"shipment-risk-service/internal/domain"
)

// Filters for listing shipments. Zero values match everything.
type ShipmentFilter struct {
	CharacterID string
	Status      domain.Status
	ActiveOnly  bool
}

// Port: durable storage for shipment snapshots between ticks.
type ShipmentStore interface {
	// Insert or replace the shipment. Incidents and tracking events are append-only.
	SaveShipment(ctx context.Context, s domain.Shipment) error
	GetShipment(ctx context.Context, id string) (domain.Shipment, error)
	ListShipments(ctx context.Context, f ShipmentFilter) ([]domain.Shipment, error)
}

// Port: durable storage for convoys.
type ConvoyStore interface {
	SaveConvoy(ctx context.Context, c domain.Convoy) error
	// Return convoys that are not disbanded.
	ListOpenConvoys(ctx context.Context) ([]domain.Convoy, error)
}
