// Package service is the orchestration façade. It is the only entry point
// callers use: it sequences the lifecycle machine, the floor manager, the
// inventory ledger and payment reconciliation, and relays every committed
// change to the notification channel.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/floor"
	"github.com/kiwari-pos/restaurant-ops/internal/inventory"
	"github.com/kiwari-pos/restaurant-ops/internal/lifecycle"
	"github.com/kiwari-pos/restaurant-ops/internal/lock"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/notify"
	"github.com/kiwari-pos/restaurant-ops/internal/payment"
	"github.com/rs/zerolog"
)

// Store is every persistence method the façade and its components use.
// Satisfied by *store.Store and *memory.Store.
type Store interface {
	lifecycle.Store
	inventory.Store
	payment.Store
	floor.Store
	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	ListOrders(ctx context.Context, restaurantID uuid.UUID, statuses []enum.OrderStatus) ([]model.Order, error)
	SetOrderCourier(ctx context.Context, restaurantID uuid.UUID, id int64, courierID *int64) (model.Order, error)
	SetOrderWaiter(ctx context.Context, restaurantID uuid.UUID, id int64, waiterID *int64) (model.Order, error)
	GetCourier(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Courier, error)
	ListCouriers(ctx context.Context, restaurantID uuid.UUID) ([]model.Courier, error)
}

// publishTimeout bounds relaying one event.
const publishTimeout = 2 * time.Second

// Orchestrator implements the operations staff screens call.
type Orchestrator struct {
	store     Store
	machine   *lifecycle.Machine
	ledger    *inventory.Ledger
	payments  *payment.Reconciler
	floor     *floor.Manager
	locker    lock.Locker
	publisher notify.Publisher
	logger    zerolog.Logger
}

// NewOrchestrator wires the components over one store and locker.
func NewOrchestrator(store Store, locker lock.Locker, publisher notify.Publisher, logger zerolog.Logger) *Orchestrator {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	ledger := inventory.NewLedger(store, logger)
	return &Orchestrator{
		store:     store,
		machine:   lifecycle.NewMachine(store, ledger, locker, logger),
		ledger:    ledger,
		payments:  payment.NewReconciler(store, logger),
		floor:     floor.NewManager(store, logger),
		locker:    locker,
		publisher: publisher,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
	}
}

// publish relays a committed change. The store is the source of truth, so
// a failed notification is logged and never fails the operation.
func (o *Orchestrator) publish(ctx context.Context, restaurantID uuid.UUID, entity notify.Entity, op notify.Op, payload any) {
	e, err := notify.NewEvent(restaurantID, entity, op, payload)
	if err != nil {
		o.logger.Error().Err(err).Str("entity", string(entity)).Msg("build event")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.publisher.Publish(ctx, e); err != nil {
		o.logger.Error().Err(err).Str("routing_key", e.RoutingKey()).
			Str("restaurant_id", restaurantID.String()).Msg("publish event")
	}
}

func (o *Orchestrator) publishTables(ctx context.Context, restaurantID uuid.UUID, tables []model.Table) {
	for _, t := range tables {
		o.publish(ctx, restaurantID, notify.EntityTable, notify.OpUpdate, t)
	}
}

func (o *Orchestrator) publishIngredients(ctx context.Context, restaurantID uuid.UUID, ingredients []model.Ingredient) {
	for _, ing := range ingredients {
		o.publish(ctx, restaurantID, notify.EntityIngredient, notify.OpUpdate, ing)
	}
}
