package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
)

const tableColumns = `id, restaurant_id, number, sector_id, group_id, status, order_id,
	waiter_id, x, y, width, height, shape, version, updated_at`

func scanTable(row pgx.Row) (model.Table, error) {
	var t model.Table
	err := row.Scan(&t.ID, &t.RestaurantID, &t.Number, &t.SectorID, &t.GroupID, &t.Status, &t.OrderID,
		&t.WaiterID, &t.Geometry.X, &t.Geometry.Y, &t.Geometry.Width, &t.Geometry.Height, &t.Geometry.Shape,
		&t.Version, &t.UpdatedAt)
	return t, err
}

func (s *Store) GetTable(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Table, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	t, err := scanTable(s.db.QueryRow(ctx,
		`SELECT `+tableColumns+` FROM dining_tables WHERE restaurant_id = $1 AND id = $2`, restaurantID, id))
	if err != nil {
		return model.Table{}, wrap("get table", "table", id, err)
	}
	return t, nil
}

func (s *Store) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error) {
	return s.queryTables(ctx, "list tables", `WHERE restaurant_id = $1`, restaurantID)
}

func (s *Store) ListGroupTables(ctx context.Context, restaurantID uuid.UUID, groupID uuid.UUID) ([]model.Table, error) {
	return s.queryTables(ctx, "list group tables", `WHERE restaurant_id = $1 AND group_id = $2`, restaurantID, groupID)
}

func (s *Store) queryTables(ctx context.Context, op, where string, args ...any) ([]model.Table, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+tableColumns+` FROM dining_tables `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, apperr.Infra(op, err)
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Table, error) {
		return scanTable(row)
	})
	if err != nil {
		return nil, apperr.Infra(op, err)
	}
	return tables, nil
}

// UpdateTable writes status, group, order and waiter of t while the stored
// version still equals t.Version.
func (s *Store) UpdateTable(ctx context.Context, t model.Table) (model.Table, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	saved, err := scanTable(s.db.QueryRow(ctx, `
		UPDATE dining_tables
		SET status = $4, group_id = $5, order_id = $6, waiter_id = $7,
			version = version + 1, updated_at = now()
		WHERE restaurant_id = $1 AND id = $2 AND version = $3
		RETURNING `+tableColumns,
		t.RestaurantID, t.ID, t.Version, t.Status, t.GroupID, t.OrderID, t.WaiterID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Table{}, s.staleOrMissing(ctx, "dining_tables", "table", t.RestaurantID, t.ID)
		}
		return model.Table{}, wrap("update table", "table", t.ID, err)
	}
	return saved, nil
}
