// Package store is the PostgreSQL record store. Every method is scoped by
// restaurant and runs under its own timeout; conditional writes report a
// lost race as apperr.ErrStaleStatus.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DefaultTimeout bounds a single store call when none is configured.
const DefaultTimeout = 3 * time.Second

// Store runs every query against db, so it works over a pool or inside a
// transaction alike.
type Store struct {
	db      DBTX
	timeout time.Duration
}

// New creates a new Store. A non-positive timeout uses DefaultTimeout.
func New(db DBTX, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{db: db, timeout: timeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// PostgreSQL error codes mapped to domain errors.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
)

// wrap maps a driver error for op on entity id.
func wrap(op, entity string, id any, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperr.NotFound(entity, id))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w: %s", op, apperr.ErrNotFound, pgErr.Detail)
		case codeUniqueViolation, codeCheckViolation:
			return fmt.Errorf("%s: %w", op, apperr.Invalid("%s", pgErr.Message))
		}
	}
	return apperr.Infra(op, err)
}

// numericToDecimal converts pgtype.Numeric to decimal.Decimal
func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(val.(string))
}

// decimalToNumeric converts decimal.Decimal to pgtype.Numeric
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

// toDecimals converts src[i] into *dst[i].
func toDecimals(src []pgtype.Numeric, dst ...*decimal.Decimal) error {
	for i, n := range src {
		d, err := numericToDecimal(n)
		if err != nil {
			return fmt.Errorf("decode numeric: %w", err)
		}
		*dst[i] = d
	}
	return nil
}
