package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/middleware"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/service"
)

// OrderServicer defines the façade methods needed by order handlers.
// Satisfied by *service.Orchestrator; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (model.Order, error)
	GetOrder(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Order, error)
	ListOrders(ctx context.Context, restaurantID uuid.UUID, statuses []enum.OrderStatus) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, restaurantID uuid.UUID, id int64, to, expected enum.OrderStatus) (model.Order, error)
	ApproveOrder(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Order, error)
	ReportIncident(ctx context.Context, restaurantID uuid.UUID, id int64, to enum.OrderStatus) (model.Order, error)
	CancelOrder(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Order, error)
	AssignCourier(ctx context.Context, restaurantID uuid.UUID, orderID, courierID int64) (model.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /restaurants/{rid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.With(middleware.RequireRole(enum.RoleOwner, enum.RoleManager, enum.RoleWaiter, enum.RoleCashier)).
		Post("/", h.Create)
	r.With(middleware.RequireRole(enum.RoleOwner, enum.RoleManager, enum.RoleWaiter, enum.RoleKitchen, enum.RoleDelivery)).
		Patch("/{id}/status", h.UpdateStatus)
	r.With(middleware.RequireRole(enum.RoleOwner, enum.RoleManager, enum.RoleCashier)).
		Post("/{id}/approve", h.Approve)
	r.With(middleware.RequireRole(enum.RoleOwner, enum.RoleManager, enum.RoleDelivery)).
		Post("/{id}/report", h.Report)
	r.With(middleware.RequireRole(enum.RoleOwner, enum.RoleManager, enum.RoleCashier)).
		Post("/{id}/cancel", h.Cancel)
	r.With(middleware.RequireRole(enum.RoleOwner, enum.RoleManager, enum.RoleCashier)).
		Put("/{id}/courier", h.AssignCourier)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Type       string                   `json:"type" validate:"required,oneof=DINE_IN TAKEAWAY DELIVERY"`
	Channel    string                   `json:"channel" validate:"omitempty,oneof=STAFF ONLINE"`
	CustomerID *int64                   `json:"customer_id" validate:"omitempty,gt=0"`
	TableID    *int64                   `json:"table_id" validate:"omitempty,gt=0"`
	WaiterID   *int64                   `json:"waiter_id" validate:"omitempty,gt=0"`
	Discount   string                   `json:"discount" validate:"omitempty,numeric"`
	Tax        string                   `json:"tax" validate:"omitempty,numeric"`
	Tip        string                   `json:"tip" validate:"omitempty,numeric"`
	Notes      string                   `json:"notes" validate:"max=500"`
	Items      []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createOrderItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int32  `json:"quantity" validate:"required,gt=0"`
	Notes     string `json:"notes" validate:"max=200"`
}

type updateStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	Expected string `json:"expected_status"`
}

type reportRequest struct {
	Status string `json:"status" validate:"required,oneof=INCIDENT RETURNED"`
}

type assignCourierRequest struct {
	CourierID int64 `json:"courier_id" validate:"required,gt=0"`
}

// --- Handlers ---

// Create handles POST /restaurants/{rid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	rid, _, ok := scope(w, r, "")
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	svcReq := service.CreateOrderRequest{
		RestaurantID: rid,
		Type:         enum.OrderType(req.Type),
		Channel:      enum.Channel(req.Channel),
		CustomerID:   req.CustomerID,
		TableID:      req.TableID,
		WaiterID:     req.WaiterID,
		Notes:        req.Notes,
		Items:        make([]service.CreateOrderItemRequest, len(req.Items)),
	}
	var err error
	if svcReq.Discount, err = parseAmount(req.Discount); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount"})
		return
	}
	if svcReq.Tax, err = parseAmount(req.Tax); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tax"})
		return
	}
	if svcReq.Tip, err = parseAmount(req.Tip); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tip"})
		return
	}
	for i, item := range req.Items {
		svcReq.Items[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
		}
	}
	// waiters taking an order at a table are its waiter unless told otherwise
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.Role == enum.RoleWaiter && svcReq.WaiterID == nil {
		staffID := claims.StaffID
		svcReq.WaiterID = &staffID
	}

	order, err := h.svc.CreateOrder(r.Context(), svcReq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// List handles GET /restaurants/{rid}/orders?status=NEW,IN_PREPARATION.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	rid, _, ok := scope(w, r, "")
	if !ok {
		return
	}

	var statuses []enum.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, enum.OrderStatus(strings.TrimSpace(s)))
		}
	}

	orders, err := h.svc.ListOrders(r.Context(), rid, statuses)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// Get handles GET /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	rid, id, ok := scope(w, r, "id")
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(r.Context(), rid, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdateStatus handles PATCH /restaurants/{rid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	rid, id, ok := scope(w, r, "id")
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.svc.UpdateOrderStatus(r.Context(), rid, id, enum.OrderStatus(req.Status), enum.OrderStatus(req.Expected))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Approve handles POST /restaurants/{rid}/orders/{id}/approve.
func (h *OrderHandler) Approve(w http.ResponseWriter, r *http.Request) {
	rid, id, ok := scope(w, r, "id")
	if !ok {
		return
	}
	order, err := h.svc.ApproveOrder(r.Context(), rid, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Report handles POST /restaurants/{rid}/orders/{id}/report.
func (h *OrderHandler) Report(w http.ResponseWriter, r *http.Request) {
	rid, id, ok := scope(w, r, "id")
	if !ok {
		return
	}

	var req reportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.svc.ReportIncident(r.Context(), rid, id, enum.OrderStatus(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Cancel handles POST /restaurants/{rid}/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	rid, id, ok := scope(w, r, "id")
	if !ok {
		return
	}
	order, err := h.svc.CancelOrder(r.Context(), rid, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// AssignCourier handles PUT /restaurants/{rid}/orders/{id}/courier.
func (h *OrderHandler) AssignCourier(w http.ResponseWriter, r *http.Request) {
	rid, id, ok := scope(w, r, "id")
	if !ok {
		return
	}

	var req assignCourierRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.svc.AssignCourier(r.Context(), rid, id, req.CourierID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
