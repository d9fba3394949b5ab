package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/inventory"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
)

// ProductAvailability is a product with its availability derived from
// current stock.
type ProductAvailability struct {
	model.Product
	inventory.Availability
}

// MenuAvailability lists every product with cost and sellable count.
func (o *Orchestrator) MenuAvailability(ctx context.Context, restaurantID uuid.UUID) ([]ProductAvailability, error) {
	products, avail, err := o.ledger.Availability(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	out := make([]ProductAvailability, len(products))
	for i := range products {
		out[i] = ProductAvailability{Product: products[i], Availability: avail[i]}
	}
	return out, nil
}

// LowStock lists ingredients at or below their minimum.
func (o *Orchestrator) LowStock(ctx context.Context, restaurantID uuid.UUID) ([]model.Ingredient, error) {
	return o.ledger.LowStock(ctx, restaurantID)
}
