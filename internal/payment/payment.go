// Package payment accumulates payments against orders and derives the
// paid state. The sum of an order's completed payments is the only source
// of truth for the amount paid.
package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store defines the persistence methods payments need.
type Store interface {
	CreatePayment(ctx context.Context, p model.Payment) (model.Payment, error)
	ListPayments(ctx context.Context, orderID int64) ([]model.Payment, error)
}

// Input is a payment to record.
type Input struct {
	Method    enum.PaymentMethod
	Amount    decimal.Decimal
	Reference string
}

// Outcome is what a set of payments means for an order.
type Outcome struct {
	PaidTotal decimal.Decimal
	Paid      bool
	// Next is the status the order should move to, if any.
	Next *enum.OrderStatus
	// TableCleanup is set when a dine-in visit is closed by this payment.
	TableCleanup bool
}

// Validate rejects non-positive amounts and unknown methods.
func Validate(in Input) error {
	if !in.Method.Valid() {
		return apperr.Invalid("invalid payment method %q", in.Method)
	}
	if !in.Amount.IsPositive() {
		return apperr.Invalid("amount must be positive")
	}
	return nil
}

// PaidTotal sums completed payments.
func PaidTotal(payments []model.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Status == enum.PaymentStatusCompleted {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// IsPaid reports whether the order's payments cover its total.
func IsPaid(order model.Order) bool {
	return PaidTotal(order.Payments).GreaterThanOrEqual(order.Total)
}

// Settle derives the outcome of payments for order. It never mutates.
func Settle(order model.Order, payments []model.Payment) Outcome {
	out := Outcome{PaidTotal: PaidTotal(payments)}
	out.Paid = out.PaidTotal.GreaterThanOrEqual(order.Total)
	if !out.Paid {
		return out
	}

	dineIn := order.Type == enum.OrderTypeDineIn
	switch order.Status {
	case enum.OrderStatusPendingPayment:
		next := enum.OrderStatusNew
		if dineIn {
			// paying at the table closes the visit
			next = enum.OrderStatusDelivered
		}
		out.Next = &next
	case enum.OrderStatusReady:
		if dineIn {
			next := enum.OrderStatusDelivered
			out.Next = &next
		}
	}

	reachesDelivered := order.Status == enum.OrderStatusDelivered ||
		(out.Next != nil && *out.Next == enum.OrderStatusDelivered)
	out.TableCleanup = dineIn && order.TableID != nil && reachesDelivered
	return out
}

// Reconciler records payments.
type Reconciler struct {
	store  Store
	logger zerolog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(store Store, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.With().Str("component", "payment").Logger(),
	}
}

// Add appends a payment to order and returns the recorded payment with the
// outcome over all of the order's payments. Overpayment is recorded as is.
func (r *Reconciler) Add(ctx context.Context, order model.Order, in Input) (model.Payment, Outcome, error) {
	if err := Validate(in); err != nil {
		return model.Payment{}, Outcome{}, err
	}
	if order.Status == enum.OrderStatusCancelled {
		return model.Payment{}, Outcome{}, fmt.Errorf("%w: cannot add payment to cancelled order", apperr.ErrInvalidTransition)
	}

	p, err := r.store.CreatePayment(ctx, model.Payment{
		OrderID:   order.ID,
		Status:    enum.PaymentStatusCompleted,
		Method:    in.Method,
		Reference: strings.TrimSpace(in.Reference),
		Amount:    in.Amount,
	})
	if err != nil {
		return model.Payment{}, Outcome{}, fmt.Errorf("create payment: %w", err)
	}

	payments, err := r.store.ListPayments(ctx, order.ID)
	if err != nil {
		return p, Outcome{}, fmt.Errorf("list payments: %w", err)
	}

	out := Settle(order, payments)
	r.logger.Info().Int64("order_id", order.ID).Str("amount", p.Amount.StringFixed(2)).
		Str("paid_total", out.PaidTotal.StringFixed(2)).Bool("paid", out.Paid).Msg("payment recorded")
	return p, out, nil
}
