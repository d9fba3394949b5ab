package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/lifecycle"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/notify"
	"github.com/kiwari-pos/restaurant-ops/internal/payment"
	"github.com/shopspring/decimal"
)

// AddPaymentResult is the recorded payment and the order after it.
type AddPaymentResult struct {
	Payment   model.Payment   `json:"payment"`
	Order     model.Order     `json:"order"`
	PaidTotal decimal.Decimal `json:"paid_total"`
	Paid      bool            `json:"paid"`
}

// AddPayment appends a payment. When it completes the order's total, the
// order advances (PENDING_PAYMENT to NEW, or to DELIVERED at a table) and
// a finished dine-in visit frees its table for cleaning.
func (o *Orchestrator) AddPayment(ctx context.Context, restaurantID uuid.UUID, orderID int64, in payment.Input) (*AddPaymentResult, error) {
	order, err := o.store.GetOrder(ctx, restaurantID, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	p, outcome, err := o.payments.Add(ctx, order, in)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, restaurantID, notify.EntityPayment, notify.OpInsert, p)

	result := &AddPaymentResult{Payment: p, Order: order, PaidTotal: outcome.PaidTotal, Paid: outcome.Paid}
	result.Order.Payments = append(result.Order.Payments, p)

	if outcome.Next != nil {
		updated, err := o.transition(ctx, lifecycle.Request{
			RestaurantID: restaurantID,
			OrderID:      orderID,
			To:           *outcome.Next,
			Cause:        lifecycle.CausePayment,
			Expected:     order.Status,
		})
		switch {
		case err == nil:
			// transition already closed the visit if it ended
			result.Order = updated
			return result, nil
		case errors.Is(err, apperr.ErrStaleStatus):
			// another request moved the order first; the payment stands
			o.logger.Info().Int64("order_id", orderID).Msg("order moved concurrently, payment recorded without transition")
		default:
			var followUp *apperr.FollowUpError
			if errors.As(err, &followUp) {
				result.Order = updated
			}
			return result, &apperr.FollowUpError{Step: "advance paid order", Result: result, Err: err}
		}
	}
	if !outcome.Paid {
		return result, nil
	}

	// The order was read before the payment was inserted. A status change
	// that landed in between saw the order unpaid and left the table alone,
	// so the visit is checked again against the stored order.
	cur, err := o.store.GetOrder(ctx, restaurantID, orderID)
	if err != nil {
		return result, &apperr.FollowUpError{Step: "reload paid order", Result: result, Err: err}
	}
	result.Order = cur
	if needsCleaning(cur) {
		tables, err := o.floor.MarkNeedsCleaning(ctx, restaurantID, *cur.TableID)
		if err != nil {
			return result, &apperr.FollowUpError{Step: "mark table for cleaning", Result: result, Err: err}
		}
		o.publishTables(ctx, restaurantID, tables)
	}
	return result, nil
}

// ListPayments returns the payments of an order in the restaurant.
func (o *Orchestrator) ListPayments(ctx context.Context, restaurantID uuid.UUID, orderID int64) ([]model.Payment, error) {
	if _, err := o.store.GetOrder(ctx, restaurantID, orderID); err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	payments, err := o.store.ListPayments(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
