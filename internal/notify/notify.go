// Package notify relays committed changes to subscribers of a restaurant.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Entity names the kind of record an event is about.
type Entity string

const (
	EntityOrder      Entity = "order"
	EntityPayment    Entity = "payment"
	EntityTable      Entity = "table"
	EntityIngredient Entity = "ingredient"
	EntityCourier    Entity = "courier"
)

// Op is the change applied to the record.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Event is one change notification.
type Event struct {
	Entity       Entity          `json:"entity"`
	Op           Op              `json:"op"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	Payload      json.RawMessage `json:"payload"`
	At           time.Time       `json:"at"`
}

// RoutingKey is "<entity>.<op>".
func (e Event) RoutingKey() string {
	return string(e.Entity) + "." + string(e.Op)
}

// NewEvent marshals payload into an event.
func NewEvent(restaurantID uuid.UUID, entity Entity, op Op, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", entity, err)
	}
	return Event{
		Entity:       entity,
		Op:           op,
		RestaurantID: restaurantID,
		Payload:      data,
		At:           time.Now().UTC(),
	}, nil
}

// Publisher delivers events for a restaurant scope.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every publisher concurrently and returns the first
// error after all of them finished.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range f {
		g.Go(func() error {
			return p.Publish(ctx, e)
		})
	}
	return g.Wait()
}
