package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/service"
)

// MenuServicer defines the façade methods needed by menu and stock handlers.
// Satisfied by *service.Orchestrator.
type MenuServicer interface {
	MenuAvailability(ctx context.Context, restaurantID uuid.UUID) ([]service.ProductAvailability, error)
	LowStock(ctx context.Context, restaurantID uuid.UUID) ([]model.Ingredient, error)
	ListCouriers(ctx context.Context, restaurantID uuid.UUID) ([]model.Courier, error)
}

// MenuHandler serves derived menu availability, stock alerts and the
// courier roster.
type MenuHandler struct {
	svc MenuServicer
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(svc MenuServicer) *MenuHandler {
	return &MenuHandler{svc: svc}
}

// RegisterRoutes registers read-only endpoints on the given Chi router.
// Expected to be mounted at /restaurants/{rid}
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu/availability", h.Availability)
	r.Get("/ingredients/low-stock", h.LowStock)
	r.Get("/couriers", h.Couriers)
}

// Availability handles GET /restaurants/{rid}/menu/availability.
func (h *MenuHandler) Availability(w http.ResponseWriter, r *http.Request) {
	rid, _, ok := scope(w, r, "")
	if !ok {
		return
	}
	products, err := h.svc.MenuAvailability(r.Context(), rid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// LowStock handles GET /restaurants/{rid}/ingredients/low-stock.
func (h *MenuHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	rid, _, ok := scope(w, r, "")
	if !ok {
		return
	}
	ingredients, err := h.svc.LowStock(r.Context(), rid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingredients)
}

// Couriers handles GET /restaurants/{rid}/couriers.
func (h *MenuHandler) Couriers(w http.ResponseWriter, r *http.Request) {
	rid, _, ok := scope(w, r, "")
	if !ok {
		return
	}
	couriers, err := h.svc.ListCouriers(r.Context(), rid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, couriers)
}
