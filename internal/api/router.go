package api

import (
	"net/http"

	"shipment-risk-service/internal/api/handlers"
	"shipment-risk-service/internal/platform/logging"
	"shipment-risk-service/internal/ports"
)

// Engine is everything the HTTP layer needs from the simulation engine.
type Engine interface {
	handlers.ShipmentService
	handlers.ConvoyService
}

type Deps struct {
	Engine  Engine
	Catalog ports.CatalogLister
	// Serves /metrics when set.
	Metrics http.Handler
	Logger  logging.Logger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	shipments := &handlers.ShipmentHandler{Engine: d.Engine}
	convoys := &handlers.ConvoyHandler{Engine: d.Engine}
	catalog := &handlers.CatalogHandler{Catalog: d.Catalog}

	mux.HandleFunc("/health", handlers.Health)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	mux.HandleFunc("POST /shipments", shipments.Create)
	mux.HandleFunc("GET /shipments", shipments.List)
	mux.HandleFunc("GET /shipments/{id}", shipments.Get)
	mux.HandleFunc("POST /shipments/{id}/tick", shipments.Tick)
	mux.HandleFunc("POST /shipments/{id}/cancel", shipments.Cancel)
	mux.HandleFunc("POST /shipments/{id}/escort", shipments.RequestEscort)
	mux.HandleFunc("POST /ticks", shipments.TickAll)

	mux.HandleFunc("POST /convoys", convoys.Create)
	mux.HandleFunc("GET /convoys/{id}", convoys.Get)
	mux.HandleFunc("POST /convoys/{id}/launch", convoys.Launch)
	mux.HandleFunc("POST /convoys/{id}/disband", convoys.Disband)
	mux.HandleFunc("POST /convoys/{id}/join", convoys.Join)
	mux.HandleFunc("POST /convoys/{id}/leave", convoys.Leave)

	mux.HandleFunc("GET /catalog/routes", catalog.Routes)
	mux.HandleFunc("GET /catalog/vehicles", catalog.VehicleTypes)
	mux.HandleFunc("GET /catalog/insurance-plans", catalog.InsurancePlans)

	log := d.Logger
	if log == nil {
		log = logging.Noop()
	}
	return requestIDMiddleware(loggingMiddleware(mux, log), log)
}
