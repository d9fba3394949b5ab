package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/middleware"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/service"
)

// TableServicer defines the façade methods needed by table handlers.
// Satisfied by *service.Orchestrator.
type TableServicer interface {
	ListTables(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error)
	OpenTable(ctx context.Context, req service.CreateOrderRequest) (*service.OpenTableResult, error)
	RequestCheck(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error)
	FlagTable(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error)
	CleanTable(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error)
	JoinTables(ctx context.Context, restaurantID uuid.UUID, tableIDs []int64) ([]model.Table, error)
	UngroupTable(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error)
	AssignWaiter(ctx context.Context, restaurantID uuid.UUID, tableID int64, waiterID *int64) ([]model.Table, error)
}

// TableHandler handles floor plan endpoints.
type TableHandler struct {
	svc TableServicer
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(svc TableServicer) *TableHandler {
	return &TableHandler{svc: svc}
}

// RegisterRoutes registers table endpoints on the given Chi router.
// Expected to be mounted at /restaurants/{rid}/tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.RoleOwner, enum.RoleManager, enum.RoleWaiter, enum.RoleCashier))
		r.Post("/{id}/open", h.Open)
		r.Post("/{id}/request-check", h.RequestCheck)
		r.Post("/{id}/flag", h.Flag)
		r.Post("/{id}/clean", h.Clean)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.RoleOwner, enum.RoleManager))
		r.Post("/join", h.Join)
		r.Post("/{id}/ungroup", h.Ungroup)
		r.Put("/{id}/waiter", h.AssignWaiter)
	})
}

// --- Request types ---

type openTableRequest struct {
	Channel    string                   `json:"channel" validate:"omitempty,oneof=STAFF ONLINE"`
	CustomerID *int64                   `json:"customer_id" validate:"omitempty,gt=0"`
	WaiterID   *int64                   `json:"waiter_id" validate:"omitempty,gt=0"`
	Discount   string                   `json:"discount" validate:"omitempty,numeric"`
	Tax        string                   `json:"tax" validate:"omitempty,numeric"`
	Tip        string                   `json:"tip" validate:"omitempty,numeric"`
	Notes      string                   `json:"notes" validate:"max=500"`
	Items      []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type joinTablesRequest struct {
	TableIDs []int64 `json:"table_ids" validate:"required,min=2,dive,gt=0"`
}

type assignWaiterRequest struct {
	WaiterID *int64 `json:"waiter_id" validate:"omitempty,gt=0"`
}

// --- Handlers ---

// List handles GET /restaurants/{rid}/tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	rid, _, ok := scope(w, r, "")
	if !ok {
		return
	}
	tables, err := h.svc.ListTables(r.Context(), rid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

// Open handles POST /restaurants/{rid}/tables/{id}/open. It creates a
// dine-in order and seats it at the table group.
func (h *TableHandler) Open(w http.ResponseWriter, r *http.Request) {
	rid, tableID, ok := scope(w, r, "id")
	if !ok {
		return
	}

	var req openTableRequest
	if !decodeBody(w, r, &req) {
		return
	}

	svcReq := service.CreateOrderRequest{
		RestaurantID: rid,
		Type:         enum.OrderTypeDineIn,
		Channel:      enum.Channel(req.Channel),
		CustomerID:   req.CustomerID,
		TableID:      &tableID,
		WaiterID:     req.WaiterID,
		Notes:        req.Notes,
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
	for _, item := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
		})
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.Role == enum.RoleWaiter && svcReq.WaiterID == nil {
		staffID := claims.StaffID
		svcReq.WaiterID = &staffID
	}

	result, err := h.svc.OpenTable(r.Context(), svcReq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"order":  result.Order,
		"tables": result.Tables,
	})
}

// RequestCheck handles POST /restaurants/{rid}/tables/{id}/request-check.
func (h *TableHandler) RequestCheck(w http.ResponseWriter, r *http.Request) {
	h.tableOp(w, r, h.svc.RequestCheck)
}

// Flag handles POST /restaurants/{rid}/tables/{id}/flag.
func (h *TableHandler) Flag(w http.ResponseWriter, r *http.Request) {
	h.tableOp(w, r, h.svc.FlagTable)
}

// Clean handles POST /restaurants/{rid}/tables/{id}/clean.
func (h *TableHandler) Clean(w http.ResponseWriter, r *http.Request) {
	h.tableOp(w, r, h.svc.CleanTable)
}

// Ungroup handles POST /restaurants/{rid}/tables/{id}/ungroup.
func (h *TableHandler) Ungroup(w http.ResponseWriter, r *http.Request) {
	h.tableOp(w, r, h.svc.UngroupTable)
}

// Join handles POST /restaurants/{rid}/tables/join.
func (h *TableHandler) Join(w http.ResponseWriter, r *http.Request) {
	rid, _, ok := scope(w, r, "")
	if !ok {
		return
	}

	var req joinTablesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tables, err := h.svc.JoinTables(r.Context(), rid, req.TableIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

// AssignWaiter handles PUT /restaurants/{rid}/tables/{id}/waiter.
func (h *TableHandler) AssignWaiter(w http.ResponseWriter, r *http.Request) {
	rid, tableID, ok := scope(w, r, "id")
	if !ok {
		return
	}

	var req assignWaiterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tables, err := h.svc.AssignWaiter(r.Context(), rid, tableID, req.WaiterID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (h *TableHandler) tableOp(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID, int64) ([]model.Table, error)) {
	rid, tableID, ok := scope(w, r, "id")
	if !ok {
		return
	}
	tables, err := op(r.Context(), rid, tableID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}
