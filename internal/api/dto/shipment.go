package dto

import (
	"time"

	"shipment-risk-service/internal/domain"

	"github.com/shopspring/decimal"
)

type CargoItemRequest struct {
	ItemID   string          `json:"item_id"`
	Quantity int             `json:"quantity"`
	Weight   float64         `json:"weight"`
	Volume   float64         `json:"volume"`
	Value    decimal.Decimal `json:"value"`
	Fragile  bool            `json:"fragile"`
}

type CreateShipmentRequest struct {
	CharacterID   string             `json:"character_id"`
	RouteID       string             `json:"route_id"`
	VehicleTypeID string             `json:"vehicle_type_id"`
	Cargo         []CargoItemRequest `json:"cargo"`
	Priority      string             `json:"priority"`
	InsurancePlan string             `json:"insurance_plan"`
}

type EscortRequest struct {
	Type    string          `json:"type"`
	Payment decimal.Decimal `json:"payment"`
}

type ShipmentResponse struct {
	ID                 string                 `json:"id"`
	CharacterID        string                 `json:"character_id"`
	RouteID            string                 `json:"route_id"`
	VehicleTypeID      string                 `json:"vehicle_type_id"`
	Origin             string                 `json:"origin"`
	Destination        string                 `json:"destination"`
	Priority           domain.Priority        `json:"priority"`
	Status             domain.Status          `json:"status"`
	CurrentLegIndex    int                    `json:"current_leg_index"`
	LegCount           int                    `json:"leg_count"`
	ProgressPercentage float64                `json:"progress_percentage"`
	CurrentLocation    string                 `json:"current_location"`
	EstimatedDelivery  time.Time              `json:"estimated_delivery"`
	ActualDelivery     *time.Time             `json:"actual_delivery,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	Cargo              []domain.CargoItem     `json:"cargo"`
	Insurance          *domain.Insurance      `json:"insurance,omitempty"`
	Incidents          []domain.Incident      `json:"incidents"`
	TrackingEvents     []domain.TrackingEvent `json:"tracking_events"`
	Escorts            []domain.EscortRequest `json:"escorts"`
	EscortRequested    bool                   `json:"escort_requested"`
	ConvoyID           string                 `json:"convoy_id,omitempty"`
	RiskReduction      float64                `json:"risk_reduction"`
	DelayTicksLeft     int                    `json:"delay_ticks_left,omitempty"`
	FrozenReason       string                 `json:"frozen_reason,omitempty"`
}

type ListShipmentsResponse struct {
	Shipments []ShipmentResponse `json:"shipments"`
}

// NewShipmentResponse flattens a shipment snapshot for the API.
func NewShipmentResponse(s domain.Shipment, riskReduction float64) ShipmentResponse {
	return ShipmentResponse{
		ID:                 s.ID,
		CharacterID:        s.CharacterID,
		RouteID:            s.RouteID,
		VehicleTypeID:      s.VehicleTypeID,
		Origin:             s.Route.Origin,
		Destination:        s.Route.Destination,
		Priority:           s.Priority,
		Status:             s.Status,
		CurrentLegIndex:    s.CurrentLegIndex,
		LegCount:           s.Route.LegCount(),
		ProgressPercentage: s.ProgressPercentage,
		CurrentLocation:    s.CurrentLocation,
		EstimatedDelivery:  s.EstimatedDelivery,
		ActualDelivery:     s.ActualDelivery,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		Cargo:              nonNil(s.Cargo),
		Insurance:          s.Insurance,
		Incidents:          nonNil(s.Incidents),
		TrackingEvents:     nonNil(s.TrackingEvents),
		Escorts:            nonNil(s.Escorts),
		EscortRequested:    s.EscortRequested,
		ConvoyID:           s.ConvoyID,
		RiskReduction:      riskReduction,
		DelayTicksLeft:     s.DelayTicksLeft,
		FrozenReason:       s.FrozenReason,
	}
}

type TickAllResponse struct {
	Tick      int64     `json:"tick"`
	SimTime   time.Time `json:"sim_time"`
	Advanced  int       `json:"advanced"`
	Incidents int       `json:"incidents"`
	Finished  int       `json:"finished"`
	Frozen    int       `json:"frozen"`
	Active    int       `json:"active"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
