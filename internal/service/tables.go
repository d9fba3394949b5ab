package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/lock"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/notify"
)

// ListTables returns the floor plan of a restaurant.
func (o *Orchestrator) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error) {
	return o.floor.List(ctx, restaurantID)
}

// RequestCheck marks a table group as waiting for the bill.
func (o *Orchestrator) RequestCheck(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	return o.floorOp(ctx, restaurantID, func() ([]model.Table, error) {
		return o.floor.RequestCheck(ctx, restaurantID, tableID)
	})
}

// FlagTable marks a table group as needing a waiter.
func (o *Orchestrator) FlagTable(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	return o.floorOp(ctx, restaurantID, func() ([]model.Table, error) {
		return o.floor.Flag(ctx, restaurantID, tableID)
	})
}

// CleanTable frees a table group after cleaning.
func (o *Orchestrator) CleanTable(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	return o.floorOp(ctx, restaurantID, func() ([]model.Table, error) {
		return o.floor.Clean(ctx, restaurantID, tableID)
	})
}

// JoinTables groups free tables so they are opened and closed together.
func (o *Orchestrator) JoinTables(ctx context.Context, restaurantID uuid.UUID, tableIDs []int64) ([]model.Table, error) {
	return o.floorOp(ctx, restaurantID, func() ([]model.Table, error) {
		return o.floor.Join(ctx, restaurantID, tableIDs)
	})
}

// UngroupTable splits the group a table belongs to.
func (o *Orchestrator) UngroupTable(ctx context.Context, restaurantID uuid.UUID, tableID int64) ([]model.Table, error) {
	return o.floorOp(ctx, restaurantID, func() ([]model.Table, error) {
		return o.floor.Ungroup(ctx, restaurantID, tableID)
	})
}

// AssignWaiter assigns a waiter to a table group and to the order seated
// there. A nil waiter unassigns.
func (o *Orchestrator) AssignWaiter(ctx context.Context, restaurantID uuid.UUID, tableID int64, waiterID *int64) ([]model.Table, error) {
	tables, err := o.floorOp(ctx, restaurantID, func() ([]model.Table, error) {
		return o.floor.AssignWaiter(ctx, restaurantID, tableID, waiterID)
	})
	if err != nil {
		return nil, err
	}

	orderID := seatedOrder(tables)
	if orderID == nil {
		return tables, nil
	}
	unlock, err := o.locker.Lock(ctx, lock.OrderKey(*orderID))
	if err != nil {
		return tables, &apperr.FollowUpError{Step: "assign waiter to order", Result: tables, Err: apperr.Infra("lock order", err)}
	}
	defer unlock()

	order, err := o.store.SetOrderWaiter(ctx, restaurantID, *orderID, waiterID)
	if err != nil {
		return tables, &apperr.FollowUpError{Step: "assign waiter to order", Result: tables, Err: fmt.Errorf("set order waiter: %w", err)}
	}
	o.publish(ctx, restaurantID, notify.EntityOrder, notify.OpUpdate, order)
	return tables, nil
}

func (o *Orchestrator) floorOp(ctx context.Context, restaurantID uuid.UUID, op func() ([]model.Table, error)) ([]model.Table, error) {
	tables, err := op()
	if err != nil {
		return nil, err
	}
	o.publishTables(ctx, restaurantID, tables)
	return tables, nil
}

func seatedOrder(tables []model.Table) *int64 {
	for _, t := range tables {
		if t.OrderID != nil {
			return t.OrderID
		}
	}
	return nil
}
