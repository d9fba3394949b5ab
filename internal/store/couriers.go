package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
)

const courierColumns = `id, restaurant_id, name, status, updated_at`

func scanCourier(row pgx.Row) (model.Courier, error) {
	var c model.Courier
	err := row.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.Status, &c.UpdatedAt)
	return c, err
}

func (s *Store) GetCourier(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := scanCourier(s.db.QueryRow(ctx,
		`SELECT `+courierColumns+` FROM couriers WHERE restaurant_id = $1 AND id = $2`, restaurantID, id))
	if err != nil {
		return model.Courier{}, wrap("get courier", "courier", id, err)
	}
	return c, nil
}

func (s *Store) ListCouriers(ctx context.Context, restaurantID uuid.UUID) ([]model.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT `+courierColumns+` FROM couriers WHERE restaurant_id = $1 ORDER BY id`, restaurantID)
	if err != nil {
		return nil, apperr.Infra("list couriers", err)
	}
	couriers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Courier, error) {
		return scanCourier(row)
	})
	if err != nil {
		return nil, apperr.Infra("list couriers", err)
	}
	return couriers, nil
}

// UpdateCourierStatus sets the courier's status. When expected is set the
// write only happens while the stored status equals it.
func (s *Store) UpdateCourierStatus(ctx context.Context, restaurantID uuid.UUID, id int64, expected *enum.CourierStatus, to enum.CourierStatus) (model.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var want *string
	if expected != nil {
		v := string(*expected)
		want = &v
	}
	c, err := scanCourier(s.db.QueryRow(ctx, `
		UPDATE couriers SET status = $3, updated_at = now()
		WHERE restaurant_id = $1 AND id = $2 AND ($4::text IS NULL OR status = $4)
		RETURNING `+courierColumns,
		restaurantID, id, to, want))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Courier{}, s.staleOrMissing(ctx, "couriers", "courier", restaurantID, id)
		}
		return model.Courier{}, wrap("update courier status", "courier", id, err)
	}
	return c, nil
}
