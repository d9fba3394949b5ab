package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/lock"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/notify"
)

// assignable lists the statuses in which a courier can still be assigned.
var assignable = map[enum.OrderStatus]bool{
	enum.OrderStatusPendingPayment: true,
	enum.OrderStatusNew:            true,
	enum.OrderStatusInPreparation:  true,
	enum.OrderStatusReady:          true,
}

// ListCouriers returns the couriers of a restaurant with their availability.
func (o *Orchestrator) ListCouriers(ctx context.Context, restaurantID uuid.UUID) ([]model.Courier, error) {
	return o.store.ListCouriers(ctx, restaurantID)
}

// AssignCourier hands a delivery order to an available courier. The
// courier becomes BUSY; a previously assigned courier is released.
func (o *Orchestrator) AssignCourier(ctx context.Context, restaurantID uuid.UUID, orderID, courierID int64) (model.Order, error) {
	unlock, err := o.locker.Lock(ctx, lock.OrderKey(orderID))
	if err != nil {
		return model.Order{}, apperr.Infra("lock order", err)
	}
	defer unlock()

	order, err := o.store.GetOrder(ctx, restaurantID, orderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.Type != enum.OrderTypeDelivery {
		return model.Order{}, apperr.Invalid("order %d is not a delivery order", order.ID)
	}
	if !assignable[order.Status] {
		return model.Order{}, fmt.Errorf("%w: cannot assign a courier to a %s order", apperr.ErrInvalidTransition, order.Status)
	}
	if order.CourierID != nil && *order.CourierID == courierID {
		return order, nil
	}

	courier, err := o.store.GetCourier(ctx, restaurantID, courierID)
	if err != nil {
		return model.Order{}, fmt.Errorf("get courier: %w", err)
	}
	if courier.Status != enum.CourierStatusAvailable {
		return model.Order{}, apperr.Invalid("courier %s is %s", courier.Name, courier.Status)
	}

	available := enum.CourierStatusAvailable
	courier, err = o.store.UpdateCourierStatus(ctx, restaurantID, courierID, &available, enum.CourierStatusBusy)
	if err != nil {
		return model.Order{}, fmt.Errorf("reserve courier: %w", err)
	}

	updated, err := o.store.SetOrderCourier(ctx, restaurantID, orderID, &courierID)
	if err != nil {
		busy := enum.CourierStatusBusy
		if _, cerr := o.store.UpdateCourierStatus(context.WithoutCancel(ctx), restaurantID, courierID, &busy, enum.CourierStatusAvailable); cerr != nil {
			o.logger.Error().Err(cerr).Int64("courier_id", courierID).Msg("release courier after failed assignment")
			err = errors.Join(err, cerr)
		}
		return model.Order{}, fmt.Errorf("set order courier: %w", err)
	}
	o.publish(ctx, restaurantID, notify.EntityOrder, notify.OpUpdate, updated)
	o.publish(ctx, restaurantID, notify.EntityCourier, notify.OpUpdate, courier)
	o.logger.Info().Int64("order_id", orderID).Int64("courier_id", courierID).Msg("courier assigned")

	if order.CourierID != nil {
		prev, err := o.store.UpdateCourierStatus(ctx, restaurantID, *order.CourierID, nil, enum.CourierStatusAvailable)
		if err != nil {
			return updated, &apperr.FollowUpError{Step: "release previous courier", Result: updated, Err: err}
		}
		o.publish(ctx, restaurantID, notify.EntityCourier, notify.OpUpdate, prev)
	}
	return updated, nil
}
