package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
)

const paymentColumns = `id, order_id, status, method, reference, amount, created_at`

func scanPayment(row pgx.Row) (model.Payment, error) {
	var p model.Payment
	var amount pgtype.Numeric
	if err := row.Scan(&p.ID, &p.OrderID, &p.Status, &p.Method, &p.Reference, &amount, &p.CreatedAt); err != nil {
		return model.Payment{}, err
	}
	return p, toDecimals([]pgtype.Numeric{amount}, &p.Amount)
}

// CreatePayment appends a payment. Payments are never updated.
func (s *Store) CreatePayment(ctx context.Context, p model.Payment) (model.Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	saved, err := scanPayment(s.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, status, method, reference, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+paymentColumns,
		p.OrderID, p.Status, p.Method, p.Reference, decimalToNumeric(p.Amount)))
	if err != nil {
		return model.Payment{}, wrap("create payment", "order", p.OrderID, err)
	}
	return saved, nil
}

// ListPayments returns an order's payments in insertion order.
func (s *Store) ListPayments(ctx context.Context, orderID int64) ([]model.Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.queryPayments(ctx, `WHERE order_id = $1`, orderID)
}

func (s *Store) queryPayments(ctx context.Context, where string, arg any) ([]model.Payment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, apperr.Infra("list payments", err)
	}
	payments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, apperr.Infra("list payments", err)
	}
	return payments, nil
}
