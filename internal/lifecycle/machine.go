package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/lock"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/store"
	"github.com/rs/zerolog"
)

// Store defines the persistence methods the state machine needs.
// Satisfied by *store.Store and *memory.Store.
type Store interface {
	GetOrder(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Order, error)
	TransitionOrder(ctx context.Context, arg store.TransitionOrderParams) (model.Order, error)
	UpdateCourierStatus(ctx context.Context, restaurantID uuid.UUID, id int64, expected *enum.CourierStatus, to enum.CourierStatus) (model.Courier, error)
}

// StockLedger is the part of the inventory ledger the machine drives.
// Satisfied by *inventory.Ledger.
type StockLedger interface {
	Deduct(ctx context.Context, order model.Order) ([]model.ConsumedIngredient, []model.Ingredient, error)
	Restitute(ctx context.Context, order model.Order) ([]model.Ingredient, error)
	Retake(ctx context.Context, order model.Order) ([]model.Ingredient, error)
}

// Request asks for one transition.
type Request struct {
	RestaurantID uuid.UUID
	OrderID      int64
	To           enum.OrderStatus
	Cause        Cause
	// Expected, when set, must equal the current status or the request
	// fails with apperr.ErrStaleStatus.
	Expected enum.OrderStatus
}

// Result describes what a transition did.
type Result struct {
	Order           model.Order
	Previous        enum.OrderStatus
	Changed         bool
	Adjusted        []model.Ingredient // ingredients whose stock moved
	ReleasedCourier *model.Courier
}

// Machine owns order status transitions and their stock and courier side
// effects.
type Machine struct {
	store  Store
	ledger StockLedger
	locker lock.Locker
	logger zerolog.Logger
}

// NewMachine creates a new Machine.
func NewMachine(store Store, ledger StockLedger, locker lock.Locker, logger zerolog.Logger) *Machine {
	return &Machine{
		store:  store,
		ledger: ledger,
		locker: locker,
		logger: logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Transition moves an order to req.To. Stock is deducted the first time an
// order enters IN_PREPARATION and the quantities taken are stored with the
// status; cancelling a deducted order gives those quantities back. Both
// happen before the status write and are reversed if that write fails, so
// a failed call leaves the order at its last known state.
func (m *Machine) Transition(ctx context.Context, req Request) (*Result, error) {
	unlock, err := m.locker.Lock(ctx, lock.OrderKey(req.OrderID))
	if err != nil {
		return nil, apperr.Infra("lock order", err)
	}
	defer unlock()

	order, err := m.store.GetOrder(ctx, req.RestaurantID, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if req.Expected != "" && order.Status != req.Expected {
		return nil, fmt.Errorf("order %d is %s, expected %s: %w", order.ID, order.Status, req.Expected, apperr.ErrStaleStatus)
	}
	if err := Validate(order.Type, order.Status, req.To, req.Cause); err != nil {
		return nil, fmt.Errorf("order %d: %w", order.ID, err)
	}

	result := &Result{Order: order, Previous: order.Status}

	// Re-entering IN_PREPARATION is accepted and does nothing.
	if order.Status == req.To {
		return result, nil
	}

	stockDeducted := order.StockDeducted
	consumption := order.Consumption
	var undo func(context.Context) error

	switch {
	case req.To == enum.OrderStatusInPreparation && !order.StockDeducted:
		taken, adjusted, err := m.ledger.Deduct(ctx, order)
		if err != nil {
			return nil, err
		}
		stockDeducted = true
		consumption = taken
		result.Adjusted = adjusted
		undo = func(ctx context.Context) error {
			deducted := order
			deducted.Consumption = taken
			_, err := m.ledger.Restitute(ctx, deducted)
			return err
		}
	case req.To == enum.OrderStatusCancelled && order.StockDeducted:
		adjusted, err := m.ledger.Restitute(ctx, order)
		if err != nil {
			return nil, err
		}
		stockDeducted = false
		consumption = nil
		result.Adjusted = adjusted
		undo = func(ctx context.Context) error {
			_, err := m.ledger.Retake(ctx, order)
			return err
		}
	}

	updated, err := m.store.TransitionOrder(ctx, store.TransitionOrderParams{
		RestaurantID:  order.RestaurantID,
		ID:            order.ID,
		From:          order.Status,
		To:            req.To,
		StockDeducted: stockDeducted,
		Consumption:   consumption,
	})
	if err != nil {
		if undo != nil {
			if uerr := undo(context.WithoutCancel(ctx)); uerr != nil {
				m.logger.Error().Err(uerr).Int64("order_id", order.ID).
					Msg("stock compensation after failed status write")
				err = errors.Join(err, uerr)
			}
		}
		return nil, fmt.Errorf("write status: %w", err)
	}

	result.Order = updated
	result.Changed = true
	m.logger.Info().Int64("order_id", order.ID).
		Str("from", string(order.Status)).Str("to", string(req.To)).
		Str("cause", string(req.Cause)).Msg("order transitioned")

	if releasesCourier(req.To) && updated.CourierID != nil {
		courier, err := m.store.UpdateCourierStatus(ctx, updated.RestaurantID, *updated.CourierID, nil, enum.CourierStatusAvailable)
		if err != nil {
			return result, &apperr.FollowUpError{Step: "release courier", Result: result, Err: err}
		}
		result.ReleasedCourier = &courier
	}

	return result, nil
}
