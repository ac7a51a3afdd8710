package dto

import "shipment-risk-service/internal/domain"

type CreateConvoyRequest struct {
	LeaderID    string   `json:"leader_id"`
	ShipmentIDs []string `json:"shipment_ids"`
}

type ConvoyMembershipRequest struct {
	ShipmentID string `json:"shipment_id"`
}

type ConvoyResponse struct {
	domain.Convoy
	ShipmentIDs []string `json:"shipment_ids"`
}

func NewConvoyResponse(c domain.Convoy) ConvoyResponse {
	if c.Members == nil {
		c.Members = []string{}
	}
	if c.Shipments == nil {
		c.Shipments = []domain.ConvoyShipment{}
	}
	return ConvoyResponse{Convoy: c, ShipmentIDs: c.ShipmentIDs()}
}
