package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/logging"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Warn(r.Context(), "encode failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Err(err),
		)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to HTTP statuses. Anything unmapped is
// logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidCargo),
		errors.Is(err, domain.ErrInvalidVehicleForRoute):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrShipmentTerminal),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrAlreadyInConvoy),
		errors.Is(err, domain.ErrNotConvoyMember),
		errors.Is(err, domain.ErrConvoyClosed):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		logging.FromContext(r.Context()).Error(r.Context(), op+" failed", logging.Err(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads exactly one JSON object from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}
