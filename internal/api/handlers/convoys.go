package handlers

import (
	"context"
	"net/http"
	"strings"

	"shipment-risk-service/internal/api/dto"
	"shipment-risk-service/internal/domain"
)

// ConvoyService is the part of the engine the convoy endpoints use.
type ConvoyService interface {
	CreateConvoy(ctx context.Context, leaderID string, shipmentIDs []string) (domain.Convoy, error)
	GetConvoy(ctx context.Context, id string) (domain.Convoy, error)
	LaunchConvoy(ctx context.Context, id string) (domain.Convoy, error)
	DisbandConvoy(ctx context.Context, id string) (domain.Convoy, error)
	JoinConvoy(ctx context.Context, convoyID, shipmentID string) (domain.Convoy, error)
	LeaveConvoy(ctx context.Context, convoyID, shipmentID string) (domain.Convoy, error)
}

type ConvoyHandler struct {
	Engine ConvoyService
}

func (h *ConvoyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateConvoyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.LeaderID) == "" {
		writeError(w, r, http.StatusBadRequest, "leader_id is required")
		return
	}

	cv, err := h.Engine.CreateConvoy(r.Context(), strings.TrimSpace(req.LeaderID), req.ShipmentIDs)
	if err != nil {
		writeServiceError(w, r, "create convoy", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, dto.NewConvoyResponse(cv))
}

func (h *ConvoyHandler) Get(w http.ResponseWriter, r *http.Request) {
	cv, err := h.Engine.GetConvoy(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "get convoy", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewConvoyResponse(cv))
}

func (h *ConvoyHandler) Launch(w http.ResponseWriter, r *http.Request) {
	cv, err := h.Engine.LaunchConvoy(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "launch convoy", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewConvoyResponse(cv))
}

func (h *ConvoyHandler) Disband(w http.ResponseWriter, r *http.Request) {
	cv, err := h.Engine.DisbandConvoy(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "disband convoy", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewConvoyResponse(cv))
}

func (h *ConvoyHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, "join convoy", h.Engine.JoinConvoy)
}

func (h *ConvoyHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, "leave convoy", h.Engine.LeaveConvoy)
}

func (h *ConvoyHandler) membership(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(ctx context.Context, convoyID, shipmentID string) (domain.Convoy, error),
) {
	var req dto.ConvoyMembershipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ShipmentID) == "" {
		writeError(w, r, http.StatusBadRequest, "shipment_id is required")
		return
	}

	cv, err := fn(r.Context(), r.PathValue("id"), strings.TrimSpace(req.ShipmentID))
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewConvoyResponse(cv))
}
