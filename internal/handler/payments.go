package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/middleware"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/payment"
	"github.com/kiwari-pos/restaurant-ops/internal/service"
)

// PaymentServicer defines the façade methods needed by payment handlers.
// Satisfied by *service.Orchestrator.
type PaymentServicer interface {
	AddPayment(ctx context.Context, restaurantID uuid.UUID, orderID int64, in payment.Input) (*service.AddPaymentResult, error)
	ListPayments(ctx context.Context, restaurantID uuid.UUID, orderID int64) ([]model.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /restaurants/{rid}/orders/{id}/payments
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.With(middleware.RequireRole(enum.RoleOwner, enum.RoleManager, enum.RoleCashier, enum.RoleWaiter, enum.RoleDelivery)).
		Post("/", h.Add)
}

type addPaymentRequest struct {
	Method    string `json:"method" validate:"required,oneof=CASH CARD WALLET_QR TRANSFER HOUSE_ACCOUNT"`
	Amount    string `json:"amount" validate:"required"`
	Reference string `json:"reference" validate:"max=100"`
}

// Add handles POST /restaurants/{rid}/orders/{id}/payments.
func (h *PaymentHandler) Add(w http.ResponseWriter, r *http.Request) {
	rid, orderID, ok := scope(w, r, "id")
	if !ok {
		return
	}

	var req addPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
		return
	}

	result, err := h.svc.AddPayment(r.Context(), rid, orderID, payment.Input{
		Method:    enum.PaymentMethod(req.Method),
		Amount:    amount,
		Reference: req.Reference,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// List handles GET /restaurants/{rid}/orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	rid, orderID, ok := scope(w, r, "id")
	if !ok {
		return
	}
	payments, err := h.svc.ListPayments(r.Context(), rid, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}
