package handlers

import (
	"net/http"

	"shipment-risk-service/internal/api/dto"
	"shipment-risk-service/internal/ports"
)

// CatalogHandler exposes read-only reference data.
type CatalogHandler struct {
	Catalog ports.CatalogLister
}

func (h *CatalogHandler) Routes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Catalog.ListRoutes(r.Context())
	if err != nil {
		writeServiceError(w, r, "list routes", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ListRoutesResponse{Routes: routes})
}

func (h *CatalogHandler) VehicleTypes(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Catalog.ListVehicleTypes(r.Context())
	if err != nil {
		writeServiceError(w, r, "list vehicle types", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ListVehicleTypesResponse{VehicleTypes: vehicles})
}

func (h *CatalogHandler) InsurancePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Catalog.ListInsurancePlans(r.Context())
	if err != nil {
		writeServiceError(w, r, "list insurance plans", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.ListInsurancePlansResponse{InsurancePlans: plans})
}
