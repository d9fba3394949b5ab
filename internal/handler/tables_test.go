package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/service"
)

func testTables(rid uuid.UUID, status enum.TableStatus, ids ...int64) []model.Table {
	out := make([]model.Table, len(ids))
	for i, id := range ids {
		out[i] = model.Table{ID: id, RestaurantID: rid, Number: fmt.Sprintf("T%d", id), Status: status}
	}
	return out
}

func TestTableOpen(t *testing.T) {
	rid := uuid.New()
	claims := testClaims(rid, enum.RoleWaiter)
	svc := &mockService{
		openTableFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.OpenTableResult, error) {
			if req.TableID == nil || *req.TableID != 3 {
				t.Errorf("table_id: got %v, want 3", req.TableID)
			}
			if req.Type != enum.OrderTypeDineIn {
				t.Errorf("type: got %s, want DINE_IN", req.Type)
			}
			if req.WaiterID == nil || *req.WaiterID != claims.StaffID {
				t.Errorf("waiter_id: got %v, want %d", req.WaiterID, claims.StaffID)
			}
			order := testOrder(rid, enum.OrderStatusNew)
			return &service.OpenTableResult{Order: order, Tables: testTables(rid, enum.TableStatusOccupied, 3, 4)}, nil
		},
	}
	rr := doAuthRequest(t, setupRouter(svc), "POST", "/restaurants/"+rid.String()+"/tables/3/open", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": 1, "quantity": 2}},
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeObject(t, rr)
	tables, ok := resp["tables"].([]interface{})
	if !ok || len(tables) != 2 {
		t.Fatalf("tables: got %v", resp["tables"])
	}
	if resp["order"] == nil {
		t.Error("order missing from response")
	}
}

func TestTableOpen_NotFree(t *testing.T) {
	rid := uuid.New()
	svc := &mockService{
		openTableFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.OpenTableResult, error) {
			return nil, apperr.Invalid("table T3 is OCCUPIED")
		},
	}
	rr := doAuthRequest(t, setupRouter(svc), "POST", "/restaurants/"+rid.String()+"/tables/3/open", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": 1, "quantity": 1}},
	}, testClaims(rid, enum.RoleWaiter))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestTableOps_RouteToOperation(t *testing.T) {
	rid := uuid.New()
	tests := []struct {
		path string
		op   string
		role string
	}{
		{"/tables/3/request-check", "request-check", enum.RoleWaiter},
		{"/tables/3/flag", "flag", enum.RoleWaiter},
		{"/tables/3/clean", "clean", enum.RoleWaiter},
		{"/tables/3/ungroup", "ungroup", enum.RoleManager},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			var called string
			svc := &mockService{
				tableOpFn: func(op string, _ uuid.UUID, tableID int64) ([]model.Table, error) {
					called = op
					if tableID != 3 {
						t.Errorf("table id: got %d, want 3", tableID)
					}
					return testTables(rid, enum.TableStatusFree, 3), nil
				},
			}
			rr := doAuthRequest(t, setupRouter(svc), "POST", "/restaurants/"+rid.String()+tt.path, nil, testClaims(rid, tt.role))
			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
			}
			if called != tt.op {
				t.Errorf("op: got %q, want %q", called, tt.op)
			}
		})
	}
}

func TestTableUngroup_WaiterForbidden(t *testing.T) {
	rid := uuid.New()
	rr := doAuthRequest(t, setupRouter(&mockService{}), "POST", "/restaurants/"+rid.String()+"/tables/3/ungroup", nil,
		testClaims(rid, enum.RoleWaiter))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestTableJoin(t *testing.T) {
	rid := uuid.New()
	svc := &mockService{
		joinTablesFn: func(ctx context.Context, _ uuid.UUID, ids []int64) ([]model.Table, error) {
			if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
				t.Errorf("ids: got %v", ids)
			}
			return testTables(rid, enum.TableStatusFree, 1, 2), nil
		},
	}
	rr := doAuthRequest(t, setupRouter(svc), "POST", "/restaurants/"+rid.String()+"/tables/join", map[string]interface{}{
		"table_ids": []int64{1, 2},
	}, testClaims(rid, enum.RoleManager))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if got := decodeList(t, rr); len(got) != 2 {
		t.Errorf("tables: got %d, want 2", len(got))
	}

	rr = doAuthRequest(t, setupRouter(svc), "POST", "/restaurants/"+rid.String()+"/tables/join", map[string]interface{}{
		"table_ids": []int64{1},
	}, testClaims(rid, enum.RoleManager))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("single table: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestTableClean_PartialGroupUpdate(t *testing.T) {
	rid := uuid.New()
	svc := &mockService{
		tableOpFn: func(op string, _ uuid.UUID, _ int64) ([]model.Table, error) {
			return nil, &apperr.PartialGroupUpdateError{
				Op: "clean table", Updated: []int64{1}, Failed: 2,
				Err: apperr.Infra("update table", context.DeadlineExceeded),
			}
		},
	}
	rr := doAuthRequest(t, setupRouter(svc), "POST", "/restaurants/"+rid.String()+"/tables/1/clean", nil, testClaims(rid, enum.RoleWaiter))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
	resp := decodeObject(t, rr)
	if resp["kind"] != string(apperr.KindPartialGroupUpdate) {
		t.Errorf("kind: got %v", resp["kind"])
	}
	if resp["failed"] != float64(2) {
		t.Errorf("failed: got %v, want 2", resp["failed"])
	}
	updated, ok := resp["updated"].([]interface{})
	if !ok || len(updated) != 1 || updated[0] != float64(1) {
		t.Errorf("updated: got %v", resp["updated"])
	}
}

func TestTableAssignWaiter(t *testing.T) {
	rid := uuid.New()
	svc := &mockService{
		assignWaiterFn: func(ctx context.Context, _ uuid.UUID, tableID int64, waiterID *int64) ([]model.Table, error) {
			if waiterID == nil || *waiterID != 11 {
				t.Errorf("waiter_id: got %v, want 11", waiterID)
			}
			return testTables(rid, enum.TableStatusOccupied, tableID), nil
		},
	}
	rr := doAuthRequest(t, setupRouter(svc), "PUT", "/restaurants/"+rid.String()+"/tables/3/waiter", map[string]interface{}{
		"waiter_id": 11,
	}, testClaims(rid, enum.RoleManager))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}
