package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
)

// TransitionOrderParams is a compare-and-swap of an order's status: the
// row is only written while its status still equals From.
type TransitionOrderParams struct {
	RestaurantID  uuid.UUID
	ID            int64
	From          enum.OrderStatus
	To            enum.OrderStatus
	StockDeducted bool
	// Consumption replaces the order's consumption record.
	Consumption []model.ConsumedIngredient
}

const orderColumns = `id, restaurant_id, customer_id, type, channel, status,
	subtotal, discount, tax, tip, total, table_id, waiter_id, courier_id,
	notes, stock_deducted, consumption, version, created_at, updated_at`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	var nums [5]pgtype.Numeric
	var consumption []byte
	err := row.Scan(&o.ID, &o.RestaurantID, &o.CustomerID, &o.Type, &o.Channel, &o.Status,
		&nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &o.TableID, &o.WaiterID, &o.CourierID,
		&o.Notes, &o.StockDeducted, &consumption, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return model.Order{}, err
	}
	if err := toDecimals(nums[:], &o.Subtotal, &o.Discount, &o.Tax, &o.Tip, &o.Total); err != nil {
		return model.Order{}, err
	}
	if len(consumption) > 0 {
		if err := json.Unmarshal(consumption, &o.Consumption); err != nil {
			return model.Order{}, fmt.Errorf("decode consumption: %w", err)
		}
	}
	return o, nil
}

// encodeConsumption renders the jsonb consumption column. Nil is stored as
// an empty array.
func encodeConsumption(c []model.ConsumedIngredient) ([]byte, error) {
	if c == nil {
		c = []model.ConsumedIngredient{}
	}
	return json.Marshal(c)
}

// CreateOrder inserts the order and its items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Order{}, apperr.Infra("begin create order", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders (restaurant_id, customer_id, type, channel, status,
			subtotal, discount, tax, tip, total, table_id, waiter_id, courier_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+orderColumns,
		o.RestaurantID, o.CustomerID, o.Type, o.Channel, o.Status,
		decimalToNumeric(o.Subtotal), decimalToNumeric(o.Discount), decimalToNumeric(o.Tax),
		decimalToNumeric(o.Tip), decimalToNumeric(o.Total),
		o.TableID, o.WaiterID, o.CourierID, o.Notes))
	if err != nil {
		return model.Order{}, wrap("create order", "order", 0, err)
	}

	created.Items = make([]model.OrderItem, 0, len(o.Items))
	for i, item := range o.Items {
		var unit, line pgtype.Numeric
		saved := item
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, line_total, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, order_id, unit_price, line_total`,
			created.ID, item.ProductID, item.ProductName, item.Quantity,
			decimalToNumeric(item.UnitPrice), decimalToNumeric(item.LineTotal), item.Notes,
		).Scan(&saved.ID, &saved.OrderID, &unit, &line)
		if err != nil {
			return model.Order{}, wrap(fmt.Sprintf("create order item %d", i), "order item", i, err)
		}
		if err := toDecimals([]pgtype.Numeric{unit, line}, &saved.UnitPrice, &saved.LineTotal); err != nil {
			return model.Order{}, err
		}
		created.Items = append(created.Items, saved)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, apperr.Infra("commit create order", err)
	}
	created.Payments = []model.Payment{}
	return created, nil
}

// GetOrder returns the order with its items and payments.
func (s *Store) GetOrder(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := scanOrder(s.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE restaurant_id = $1 AND id = $2`, restaurantID, id))
	if err != nil {
		return model.Order{}, wrap("get order", "order", id, err)
	}
	if err := s.loadChildren(ctx, []*model.Order{&o}); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// ListOrders returns a restaurant's orders, oldest first. An empty status
// list returns every order.
func (s *Store) ListOrders(ctx context.Context, restaurantID uuid.UUID, statuses []enum.OrderStatus) ([]model.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := make([]string, len(statuses))
	for i, st := range statuses {
		filter[i] = string(st)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE restaurant_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY created_at, id`, restaurantID, filter)
	if err != nil {
		return nil, apperr.Infra("list orders", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, apperr.Infra("list orders", err)
	}

	ptrs := make([]*model.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := s.loadChildren(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) loadChildren(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	byID := make(map[int64]*model.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []model.OrderItem{}
		o.Payments = []model.Payment{}
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, line_total, notes
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return apperr.Infra("list order items", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.OrderItem, error) {
		var it model.OrderItem
		var unit, line pgtype.Numeric
		if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &unit, &line, &it.Notes); err != nil {
			return it, err
		}
		return it, toDecimals([]pgtype.Numeric{unit, line}, &it.UnitPrice, &it.LineTotal)
	})
	if err != nil {
		return apperr.Infra("list order items", err)
	}
	for _, it := range items {
		o := byID[it.OrderID]
		o.Items = append(o.Items, it)
	}

	payments, err := s.queryPayments(ctx, `WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	for _, p := range payments {
		o := byID[p.OrderID]
		o.Payments = append(o.Payments, p)
	}
	return nil
}

// TransitionOrder writes the new status only while the stored status still
// equals arg.From.
func (s *Store) TransitionOrder(ctx context.Context, arg TransitionOrderParams) (model.Order, error) {
	consumption, err := encodeConsumption(arg.Consumption)
	if err != nil {
		return model.Order{}, fmt.Errorf("transition order: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := scanOrder(s.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $4, stock_deducted = $5, consumption = $6::jsonb,
			version = version + 1, updated_at = now()
		WHERE restaurant_id = $1 AND id = $2 AND status = $3
		RETURNING `+orderColumns,
		arg.RestaurantID, arg.ID, arg.From, arg.To, arg.StockDeducted, string(consumption)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, s.staleOrMissing(ctx, "orders", "order", arg.RestaurantID, arg.ID)
		}
		return model.Order{}, wrap("transition order", "order", arg.ID, err)
	}
	if err := s.loadChildren(ctx, []*model.Order{&o}); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// SetOrderCourier assigns or clears the order's courier.
func (s *Store) SetOrderCourier(ctx context.Context, restaurantID uuid.UUID, id int64, courierID *int64) (model.Order, error) {
	return s.setOrderRef(ctx, "courier_id", restaurantID, id, courierID)
}

// SetOrderWaiter assigns or clears the order's waiter.
func (s *Store) SetOrderWaiter(ctx context.Context, restaurantID uuid.UUID, id int64, waiterID *int64) (model.Order, error) {
	return s.setOrderRef(ctx, "waiter_id", restaurantID, id, waiterID)
}

// column is one of a fixed set of identifiers, never user input.
func (s *Store) setOrderRef(ctx context.Context, column string, restaurantID uuid.UUID, id int64, ref *int64) (model.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o, err := scanOrder(s.db.QueryRow(ctx, `
		UPDATE orders SET `+column+` = $3, version = version + 1, updated_at = now()
		WHERE restaurant_id = $1 AND id = $2
		RETURNING `+orderColumns, restaurantID, id, ref))
	if err != nil {
		return model.Order{}, wrap("set order "+column, "order", id, err)
	}
	if err := s.loadChildren(ctx, []*model.Order{&o}); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// staleOrMissing tells a lost compare-and-swap apart from a missing row.
// table is one of a fixed set of identifiers.
func (s *Store) staleOrMissing(ctx context.Context, table, entity string, restaurantID uuid.UUID, id int64) error {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE restaurant_id = $1 AND id = $2)`,
		restaurantID, id).Scan(&exists)
	if err != nil {
		return apperr.Infra("check "+entity, err)
	}
	if !exists {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("%s %d: %w", entity, id, apperr.ErrStaleStatus)
}
