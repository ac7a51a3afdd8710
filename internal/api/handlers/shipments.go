package handlers

import (
	"context"
	"net/http"
	"strings"

	"shipment-risk-service/internal/api/dto"
	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/ports"
	"shipment-risk-service/internal/services"

	"github.com/shopspring/decimal"
)

// ShipmentService is the part of the engine the shipment endpoints use.
type ShipmentService interface {
	CreateShipment(ctx context.Context, req services.CreateShipmentRequest) (domain.Shipment, error)
	GetShipment(ctx context.Context, id string) (domain.Shipment, error)
	ListShipments(ctx context.Context, f ports.ShipmentFilter) ([]domain.Shipment, error)
	Tick(ctx context.Context, id string) (domain.Shipment, error)
	TickAll(ctx context.Context) (services.TickSummary, error)
	Cancel(ctx context.Context, id string) (domain.Shipment, error)
	RequestEscort(ctx context.Context, id string, escort domain.EscortType, payment decimal.Decimal) (domain.EscortRequest, error)
	CurrentRiskReduction(shipmentID string) float64
}

type ShipmentHandler struct {
	Engine ShipmentService
}

func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateShipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "priority must be one of LOW, NORMAL, HIGH, URGENT")
		return
	}
	plan, err := domain.ParsePlanTier(req.InsurancePlan)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "insurance_plan must be one of NONE, BASIC, STANDARD, PREMIUM")
		return
	}
	if strings.TrimSpace(req.RouteID) == "" || strings.TrimSpace(req.VehicleTypeID) == "" {
		writeError(w, r, http.StatusBadRequest, "route_id and vehicle_type_id are required")
		return
	}

	cargo := make([]domain.CargoItem, 0, len(req.Cargo))
	for _, c := range req.Cargo {
		cargo = append(cargo, domain.CargoItem{
			ItemID:   strings.TrimSpace(c.ItemID),
			Quantity: c.Quantity,
			Weight:   c.Weight,
			Volume:   c.Volume,
			Value:    c.Value,
			Fragile:  c.Fragile,
		})
	}

	s, err := h.Engine.CreateShipment(r.Context(), services.CreateShipmentRequest{
		CharacterID:   strings.TrimSpace(req.CharacterID),
		RouteID:       strings.TrimSpace(req.RouteID),
		VehicleTypeID: strings.TrimSpace(req.VehicleTypeID),
		Cargo:         cargo,
		Priority:      priority,
		InsurancePlan: plan,
	})
	if err != nil {
		writeServiceError(w, r, "create shipment", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.NewShipmentResponse(s, 0))
}

func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, err := h.Engine.GetShipment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get shipment", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewShipmentResponse(s, h.Engine.CurrentRiskReduction(id)))
}

// List filters by ?character_id= and ?status=.
func (h *ShipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	f := ports.ShipmentFilter{CharacterID: strings.TrimSpace(r.URL.Query().Get("character_id"))}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unknown status")
			return
		}
		f.Status = st
	}
	if r.URL.Query().Get("active") == "true" {
		f.ActiveOnly = true
	}

	shipments, err := h.Engine.ListShipments(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, "list shipments", err)
		return
	}

	res := dto.ListShipmentsResponse{Shipments: make([]dto.ShipmentResponse, 0, len(shipments))}
	for _, s := range shipments {
		res.Shipments = append(res.Shipments, dto.NewShipmentResponse(s, h.Engine.CurrentRiskReduction(s.ID)))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *ShipmentHandler) Tick(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, err := h.Engine.Tick(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "tick shipment", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewShipmentResponse(s, h.Engine.CurrentRiskReduction(id)))
}

func (h *ShipmentHandler) TickAll(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Engine.TickAll(r.Context())
	if err != nil {
		writeServiceError(w, r, "tick all", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.TickAllResponse{
		Tick:      sum.Tick,
		SimTime:   sum.SimTime,
		Advanced:  sum.Advanced,
		Incidents: sum.Incidents,
		Finished:  sum.Finished,
		Frozen:    sum.Frozen,
		Active:    sum.Active,
	})
}

func (h *ShipmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "cancel shipment", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewShipmentResponse(s, 0))
}

func (h *ShipmentHandler) RequestEscort(w http.ResponseWriter, r *http.Request) {
	var req dto.EscortRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	escort, err := domain.ParseEscortType(req.Type)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "type must be one of LIGHT, ARMED, HEAVY")
		return
	}

	out, err := h.Engine.RequestEscort(r.Context(), r.PathValue("id"), escort, req.Payment)
	if err != nil {
		writeServiceError(w, r, "request escort", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, out)
}
