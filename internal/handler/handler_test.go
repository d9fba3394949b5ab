package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/auth"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/handler"
	"github.com/kiwari-pos/restaurant-ops/internal/middleware"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/payment"
	"github.com/kiwari-pos/restaurant-ops/internal/service"
	"github.com/shopspring/decimal"
)

// --- Mock façade ---

// mockService implements every *Servicer interface. Unset functions fail
// the call with a not-found error.
type mockService struct {
	createOrderFn   func(ctx context.Context, req service.CreateOrderRequest) (model.Order, error)
	getOrderFn      func(ctx context.Context, rid uuid.UUID, id int64) (model.Order, error)
	listOrdersFn    func(ctx context.Context, rid uuid.UUID, statuses []enum.OrderStatus) ([]model.Order, error)
	updateStatusFn  func(ctx context.Context, rid uuid.UUID, id int64, to, expected enum.OrderStatus) (model.Order, error)
	approveFn       func(ctx context.Context, rid uuid.UUID, id int64) (model.Order, error)
	reportFn        func(ctx context.Context, rid uuid.UUID, id int64, to enum.OrderStatus) (model.Order, error)
	cancelFn        func(ctx context.Context, rid uuid.UUID, id int64) (model.Order, error)
	assignCourierFn func(ctx context.Context, rid uuid.UUID, orderID, courierID int64) (model.Order, error)

	addPaymentFn   func(ctx context.Context, rid uuid.UUID, orderID int64, in payment.Input) (*service.AddPaymentResult, error)
	listPaymentsFn func(ctx context.Context, rid uuid.UUID, orderID int64) ([]model.Payment, error)

	listTablesFn   func(ctx context.Context, rid uuid.UUID) ([]model.Table, error)
	openTableFn    func(ctx context.Context, req service.CreateOrderRequest) (*service.OpenTableResult, error)
	tableOpFn      func(op string, rid uuid.UUID, tableID int64) ([]model.Table, error)
	joinTablesFn   func(ctx context.Context, rid uuid.UUID, ids []int64) ([]model.Table, error)
	assignWaiterFn func(ctx context.Context, rid uuid.UUID, tableID int64, waiterID *int64) ([]model.Table, error)

	availabilityFn func(ctx context.Context, rid uuid.UUID) ([]service.ProductAvailability, error)
	lowStockFn     func(ctx context.Context, rid uuid.UUID) ([]model.Ingredient, error)
	couriersFn     func(ctx context.Context, rid uuid.UUID) ([]model.Courier, error)
}

var errUnset = errors.New("mock: not configured")

func (m *mockService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (model.Order, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, req)
	}
	return model.Order{}, errUnset
}

func (m *mockService) GetOrder(ctx context.Context, rid uuid.UUID, id int64) (model.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, rid, id)
	}
	return model.Order{}, errUnset
}

func (m *mockService) ListOrders(ctx context.Context, rid uuid.UUID, statuses []enum.OrderStatus) ([]model.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, rid, statuses)
	}
	return []model.Order{}, nil
}

func (m *mockService) UpdateOrderStatus(ctx context.Context, rid uuid.UUID, id int64, to, expected enum.OrderStatus) (model.Order, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, rid, id, to, expected)
	}
	return model.Order{}, errUnset
}

func (m *mockService) ApproveOrder(ctx context.Context, rid uuid.UUID, id int64) (model.Order, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, rid, id)
	}
	return model.Order{}, errUnset
}

func (m *mockService) ReportIncident(ctx context.Context, rid uuid.UUID, id int64, to enum.OrderStatus) (model.Order, error) {
	if m.reportFn != nil {
		return m.reportFn(ctx, rid, id, to)
	}
	return model.Order{}, errUnset
}

func (m *mockService) CancelOrder(ctx context.Context, rid uuid.UUID, id int64) (model.Order, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, rid, id)
	}
	return model.Order{}, errUnset
}

func (m *mockService) AssignCourier(ctx context.Context, rid uuid.UUID, orderID, courierID int64) (model.Order, error) {
	if m.assignCourierFn != nil {
		return m.assignCourierFn(ctx, rid, orderID, courierID)
	}
	return model.Order{}, errUnset
}

func (m *mockService) AddPayment(ctx context.Context, rid uuid.UUID, orderID int64, in payment.Input) (*service.AddPaymentResult, error) {
	if m.addPaymentFn != nil {
		return m.addPaymentFn(ctx, rid, orderID, in)
	}
	return nil, errUnset
}

func (m *mockService) ListPayments(ctx context.Context, rid uuid.UUID, orderID int64) ([]model.Payment, error) {
	if m.listPaymentsFn != nil {
		return m.listPaymentsFn(ctx, rid, orderID)
	}
	return []model.Payment{}, nil
}

func (m *mockService) ListTables(ctx context.Context, rid uuid.UUID) ([]model.Table, error) {
	if m.listTablesFn != nil {
		return m.listTablesFn(ctx, rid)
	}
	return []model.Table{}, nil
}

func (m *mockService) OpenTable(ctx context.Context, req service.CreateOrderRequest) (*service.OpenTableResult, error) {
	if m.openTableFn != nil {
		return m.openTableFn(ctx, req)
	}
	return nil, errUnset
}

func (m *mockService) tableOp(op string, rid uuid.UUID, tableID int64) ([]model.Table, error) {
	if m.tableOpFn != nil {
		return m.tableOpFn(op, rid, tableID)
	}
	return nil, errUnset
}

func (m *mockService) RequestCheck(_ context.Context, rid uuid.UUID, tableID int64) ([]model.Table, error) {
	return m.tableOp("request-check", rid, tableID)
}

func (m *mockService) FlagTable(_ context.Context, rid uuid.UUID, tableID int64) ([]model.Table, error) {
	return m.tableOp("flag", rid, tableID)
}

func (m *mockService) CleanTable(_ context.Context, rid uuid.UUID, tableID int64) ([]model.Table, error) {
	return m.tableOp("clean", rid, tableID)
}

func (m *mockService) UngroupTable(_ context.Context, rid uuid.UUID, tableID int64) ([]model.Table, error) {
	return m.tableOp("ungroup", rid, tableID)
}

func (m *mockService) JoinTables(ctx context.Context, rid uuid.UUID, ids []int64) ([]model.Table, error) {
	if m.joinTablesFn != nil {
		return m.joinTablesFn(ctx, rid, ids)
	}
	return nil, errUnset
}

func (m *mockService) AssignWaiter(ctx context.Context, rid uuid.UUID, tableID int64, waiterID *int64) ([]model.Table, error) {
	if m.assignWaiterFn != nil {
		return m.assignWaiterFn(ctx, rid, tableID, waiterID)
	}
	return nil, errUnset
}

func (m *mockService) MenuAvailability(ctx context.Context, rid uuid.UUID) ([]service.ProductAvailability, error) {
	if m.availabilityFn != nil {
		return m.availabilityFn(ctx, rid)
	}
	return []service.ProductAvailability{}, nil
}

func (m *mockService) LowStock(ctx context.Context, rid uuid.UUID) ([]model.Ingredient, error) {
	if m.lowStockFn != nil {
		return m.lowStockFn(ctx, rid)
	}
	return []model.Ingredient{}, nil
}

func (m *mockService) ListCouriers(ctx context.Context, rid uuid.UUID) ([]model.Courier, error) {
	if m.couriersFn != nil {
		return m.couriersFn(ctx, rid)
	}
	return []model.Courier{}, nil
}

// --- Test helpers ---

const testJWTSecret = "test-secret-for-handlers"

// setupRouter mounts every handler the way the server router does.
func setupRouter(svc *mockService) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/restaurants/{rid}", func(r chi.Router) {
		r.Use(middleware.RequireRestaurant)
		r.Route("/orders", func(r chi.Router) {
			handler.NewOrderHandler(svc).RegisterRoutes(r)
			r.Route("/{id}/payments", handler.NewPaymentHandler(svc).RegisterRoutes)
		})
		r.Route("/tables", handler.NewTableHandler(svc).RegisterRoutes)
		handler.NewMenuHandler(svc).RegisterRoutes(r)
	})
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.StaffID, claims.RestaurantID, claims.Role, 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeObject(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	var resp []interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func testClaims(rid uuid.UUID, role string) *auth.Claims {
	return &auth.Claims{StaffID: 7, RestaurantID: rid, Role: role}
}

func testOrder(rid uuid.UUID, status enum.OrderStatus) model.Order {
	return model.Order{
		ID:           42,
		RestaurantID: rid,
		Type:         enum.OrderTypeTakeaway,
		Channel:      enum.ChannelStaff,
		Status:       status,
		Items: []model.OrderItem{{
			ID: 1, OrderID: 42, ProductID: 3, ProductName: "Nasi Bakar", Quantity: 2,
			UnitPrice: decimal.RequireFromString("12500"), LineTotal: decimal.RequireFromString("25000"),
		}},
		Subtotal: decimal.RequireFromString("25000"),
		Total:    decimal.RequireFromString("25000"),
		Payments: []model.Payment{},
	}
}
