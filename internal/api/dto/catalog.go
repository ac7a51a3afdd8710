package dto

import "shipment-risk-service/internal/domain"

type ListRoutesResponse struct {
	Routes []domain.Route `json:"routes"`
}

type ListVehicleTypesResponse struct {
	VehicleTypes []domain.VehicleType `json:"vehicle_types"`
}

type ListInsurancePlansResponse struct {
	InsurancePlans []domain.InsurancePlan `json:"insurance_plans"`
}
