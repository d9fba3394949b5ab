//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/lock"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/payment"
	"github.com/kiwari-pos/restaurant-ops/internal/service"
	"github.com/kiwari-pos/restaurant-ops/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ops_test"),
		tcpostgres.WithUsername("ops"),
		tcpostgres.WithPassword("ops"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(connStr, "../../migrations"))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// seedRestaurant inserts one dish made of 2 units of rice, 10 in stock,
// two free tables and a courier.
func seedRestaurant(t *testing.T, ctx context.Context, pool *pgxpool.Pool, rid uuid.UUID) (productID, riceID int64, tables [2]int64, courierID int64) {
	t.Helper()
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO ingredients (restaurant_id, name, unit, stock, min_stock, unit_cost)
		 VALUES ($1, 'Beras', 'kg', 10, 3, 1000) RETURNING id`, rid).Scan(&riceID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO products (restaurant_id, name, base_price) VALUES ($1, 'Nasi Goreng', 25000) RETURNING id`,
		rid).Scan(&productID))
	_, err := pool.Exec(ctx,
		`INSERT INTO recipe_items (product_id, ingredient_id, quantity) VALUES ($1, $2, 2)`, productID, riceID)
	require.NoError(t, err)
	for i, number := range []string{"T1", "T2"} {
		require.NoError(t, pool.QueryRow(ctx,
			`INSERT INTO dining_tables (restaurant_id, number) VALUES ($1, $2) RETURNING id`,
			rid, number).Scan(&tables[i]))
	}
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO couriers (restaurant_id, name) VALUES ($1, 'Budi') RETURNING id`, rid).Scan(&courierID))
	return productID, riceID, tables, courierID
}

func TestIntegrationOrderFlow(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	st := store.New(pool, 5*time.Second)
	svc := service.NewOrchestrator(st, lock.NewLocal(), nil, zerolog.Nop())

	rid := uuid.New()
	productID, riceID, tables, courierID := seedRestaurant(t, ctx, pool, rid)
	items := []service.CreateOrderItemRequest{{ProductID: productID, Quantity: 2}}

	riceStock := func() string {
		ings, err := st.ListIngredients(ctx, rid)
		require.NoError(t, err)
		for _, ing := range ings {
			if ing.ID == riceID {
				return ing.Stock.StringFixed(0)
			}
		}
		t.Fatalf("ingredient %d missing", riceID)
		return ""
	}

	// --- Online delivery order, split payment ---
	o, err := svc.CreateOrder(ctx, service.CreateOrderRequest{
		RestaurantID: rid, Type: enum.OrderTypeDelivery, Channel: enum.ChannelOnline,
		Tax: decimal.NewFromInt(5000), Items: items,
	})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPendingPayment, o.Status)
	assert.Equal(t, "55000.00", o.Total.StringFixed(2))
	require.Len(t, o.Items, 1)

	_, err = svc.AddPayment(ctx, rid, o.ID, payment.Input{Method: enum.PaymentMethodCash, Amount: decimal.NewFromInt(30000)})
	require.NoError(t, err)
	res, err := svc.AddPayment(ctx, rid, o.ID, payment.Input{Method: enum.PaymentMethodCard, Amount: decimal.NewFromInt(25000)})
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Equal(t, enum.OrderStatusNew, res.Order.Status)
	assert.Len(t, res.Order.Payments, 2)

	// --- Kitchen and courier ---
	_, err = svc.AssignCourier(ctx, rid, o.ID, courierID)
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(ctx, rid, o.ID, enum.OrderStatusInPreparation, enum.OrderStatusNew)
	require.NoError(t, err)
	assert.Equal(t, "6", riceStock())

	_, err = svc.UpdateOrderStatus(ctx, rid, o.ID, enum.OrderStatusReady, enum.OrderStatusNew)
	assert.ErrorIs(t, err, apperr.ErrStaleStatus)

	for _, s := range []enum.OrderStatus{enum.OrderStatusReady, enum.OrderStatusEnRoute, enum.OrderStatusDelivered} {
		_, err = svc.UpdateOrderStatus(ctx, rid, o.ID, s, "")
		require.NoError(t, err, "move to %s", s)
	}
	couriers, err := svc.ListCouriers(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, enum.CourierStatusAvailable, couriers[0].Status)

	// --- Dine-in at a joined group, cancelled from READY ---
	_, err = svc.JoinTables(ctx, rid, []int64{tables[0], tables[1]})
	require.NoError(t, err)
	open, err := svc.OpenTable(ctx, service.CreateOrderRequest{RestaurantID: rid, TableID: &tables[1], Items: items})
	require.NoError(t, err)
	require.Len(t, open.Tables, 2)

	for _, s := range []enum.OrderStatus{enum.OrderStatusInPreparation, enum.OrderStatusReady} {
		_, err = svc.UpdateOrderStatus(ctx, rid, open.Order.ID, s, "")
		require.NoError(t, err)
	}
	assert.Equal(t, "2", riceStock())

	seated, err := st.GetOrder(ctx, rid, open.Order.ID)
	require.NoError(t, err)
	require.Len(t, seated.Consumption, 1)
	assert.Equal(t, riceID, seated.Consumption[0].IngredientID)
	assert.Equal(t, "4", seated.Consumption[0].Quantity.String())

	// a menu edit mid-visit does not change what cancelling gives back
	_, err = pool.Exec(ctx, `UPDATE recipe_items SET quantity = 5 WHERE product_id = $1`, productID)
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, rid, open.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "6", riceStock())

	floor, err := svc.ListTables(ctx, rid)
	require.NoError(t, err)
	for _, tbl := range floor {
		assert.Equal(t, enum.TableStatusNeedsCleaning, tbl.Status)
	}
	_, err = svc.CleanTable(ctx, rid, tables[0])
	require.NoError(t, err)

	// --- Scoping ---
	_, err = svc.GetOrder(ctx, uuid.New(), o.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIntegrationUpdateTable_StaleVersion(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	st := store.New(pool, 5*time.Second)
	rid := uuid.New()
	_, _, tables, _ := seedRestaurant(t, ctx, pool, rid)

	tbl, err := st.GetTable(ctx, rid, tables[0])
	require.NoError(t, err)

	flagged := tbl
	flagged.Status = enum.TableStatusOccupied
	_, err = st.UpdateTable(ctx, flagged)
	require.NoError(t, err)

	_, err = st.UpdateTable(ctx, flagged)
	assert.ErrorIs(t, err, apperr.ErrStaleStatus)

	missing := model.Table{ID: 9999, RestaurantID: rid, Version: 1, Status: enum.TableStatusFree}
	_, err = st.UpdateTable(ctx, missing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
