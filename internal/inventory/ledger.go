package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store defines the persistence methods the ledger needs.
// Satisfied by *store.Store and *memory.Store.
type Store interface {
	GetProducts(ctx context.Context, restaurantID uuid.UUID, ids []int64) (map[int64]model.Product, error)
	ListProducts(ctx context.Context, restaurantID uuid.UUID) ([]model.Product, error)
	ListIngredients(ctx context.Context, restaurantID uuid.UUID) ([]model.Ingredient, error)
	// AdjustIngredientStock applies stock = stock + delta in one statement
	// and returns the row after the change.
	AdjustIngredientStock(ctx context.Context, restaurantID uuid.UUID, ingredientID int64, delta decimal.Decimal) (model.Ingredient, error)
}

// Ledger deducts and restitutes ingredient stock for orders.
type Ledger struct {
	store  Store
	logger zerolog.Logger
}

// NewLedger creates a new Ledger.
func NewLedger(store Store, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.With().Str("component", "inventory").Logger(),
	}
}

// Consumption aggregates ingredient usage over every order line.
// Products with an empty recipe are unmetered and contribute nothing.
func Consumption(items []model.OrderItem, products map[int64]model.Product) (map[int64]decimal.Decimal, error) {
	usage := make(map[int64]decimal.Decimal)
	for i, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("item[%d]: %w", i, apperr.NotFound("product", item.ProductID))
		}
		qty := decimal.NewFromInt32(item.Quantity)
		for _, ri := range p.Recipe {
			usage[ri.IngredientID] = usage[ri.IngredientID].Add(ri.Quantity.Mul(qty))
		}
	}
	return usage, nil
}

// Deduct decrements stock by the order's aggregated consumption and
// returns what was taken per ingredient. That record is what Restitute
// later gives back, so it must be stored with the order.
func (l *Ledger) Deduct(ctx context.Context, order model.Order) ([]model.ConsumedIngredient, []model.Ingredient, error) {
	usage, err := l.consumption(ctx, order)
	if err != nil {
		return nil, nil, fmt.Errorf("deduct order %d: %w", order.ID, err)
	}
	taken, changed, err := l.apply(ctx, order.RestaurantID, Lines(usage), true)
	if err != nil {
		return nil, nil, fmt.Errorf("deduct order %d: %w", order.ID, err)
	}
	l.logger.Info().Int64("order_id", order.ID).Int("ingredients", len(changed)).Msg("stock deducted")
	return taken, changed, nil
}

// Restitute gives back exactly order.Consumption. Recipes are not read
// again, so menu edits or removed products after preparation started do
// not change what is returned.
func (l *Ledger) Restitute(ctx context.Context, order model.Order) ([]model.Ingredient, error) {
	_, changed, err := l.apply(ctx, order.RestaurantID, order.Consumption, false)
	if err != nil {
		return nil, fmt.Errorf("restitute order %d: %w", order.ID, err)
	}
	l.logger.Info().Int64("order_id", order.ID).Int("ingredients", len(changed)).Msg("stock restituted")
	return changed, nil
}

// Retake deducts order.Consumption again. It undoes a Restitute whose
// status write failed.
func (l *Ledger) Retake(ctx context.Context, order model.Order) ([]model.Ingredient, error) {
	_, changed, err := l.apply(ctx, order.RestaurantID, order.Consumption, true)
	if err != nil {
		return nil, fmt.Errorf("retake order %d: %w", order.ID, err)
	}
	return changed, nil
}

// Availability lists every product of a restaurant with derived availability.
func (l *Ledger) Availability(ctx context.Context, restaurantID uuid.UUID) ([]model.Product, []Availability, error) {
	products, err := l.store.ListProducts(ctx, restaurantID)
	if err != nil {
		return nil, nil, fmt.Errorf("list products: %w", err)
	}
	ingredients, err := l.store.ListIngredients(ctx, restaurantID)
	if err != nil {
		return nil, nil, fmt.Errorf("list ingredients: %w", err)
	}
	stock := IndexIngredients(ingredients)

	out := make([]Availability, len(products))
	for i, p := range products {
		out[i] = ComputeAvailability(p, stock)
	}
	return products, out, nil
}

// LowStock lists ingredients at or below their minimum threshold.
func (l *Ledger) LowStock(ctx context.Context, restaurantID uuid.UUID) ([]model.Ingredient, error) {
	ingredients, err := l.store.ListIngredients(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	var low []model.Ingredient
	for _, ing := range ingredients {
		if ing.Low() {
			low = append(low, ing)
		}
	}
	return low, nil
}

func (l *Ledger) consumption(ctx context.Context, order model.Order) (map[int64]decimal.Decimal, error) {
	if len(order.Items) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(order.Items))
	seen := make(map[int64]bool, len(order.Items))
	for _, item := range order.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	products, err := l.store.GetProducts(ctx, order.RestaurantID, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return Consumption(order.Items, products)
}

// Lines orders usage by ingredient id and drops zero quantities.
func Lines(usage map[int64]decimal.Decimal) []model.ConsumedIngredient {
	lines := make([]model.ConsumedIngredient, 0, len(usage))
	for id, qty := range usage {
		if !qty.IsZero() {
			lines = append(lines, model.ConsumedIngredient{IngredientID: id, Quantity: qty})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].IngredientID < lines[j].IngredientID })
	return lines
}

// apply adjusts each ingredient independently, in the order given, and
// returns the lines it applied. When one adjustment fails, the ones already
// applied by this call are reversed before returning. Ingredients that no
// longer exist are skipped and left out of the applied lines.
func (l *Ledger) apply(ctx context.Context, restaurantID uuid.UUID, lines []model.ConsumedIngredient, deduct bool) ([]model.ConsumedIngredient, []model.Ingredient, error) {
	var applied []model.ConsumedIngredient
	var changed []model.Ingredient
	for _, line := range lines {
		delta := line.Quantity
		if deduct {
			delta = delta.Neg()
		}
		ing, err := l.store.AdjustIngredientStock(ctx, restaurantID, line.IngredientID, delta)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				l.logger.Warn().Int64("ingredient_id", line.IngredientID).Msg("ingredient no longer exists, skipped")
				continue
			}
			err = fmt.Errorf("adjust ingredient %d: %w", line.IngredientID, err)
			if cerr := l.compensate(ctx, restaurantID, applied, deduct); cerr != nil {
				return nil, nil, errors.Join(err, cerr)
			}
			return nil, nil, err
		}
		applied = append(applied, line)
		changed = append(changed, ing)
	}
	return applied, changed, nil
}

// compensate reverses applied lines, newest first.
func (l *Ledger) compensate(ctx context.Context, restaurantID uuid.UUID, applied []model.ConsumedIngredient, deducted bool) error {
	// the caller's context may already be done; compensation must still run
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		a := applied[i]
		delta := a.Quantity
		if !deducted {
			delta = delta.Neg()
		}
		if _, err := l.store.AdjustIngredientStock(ctx, restaurantID, a.IngredientID, delta); err != nil {
			l.logger.Error().Err(err).Int64("ingredient_id", a.IngredientID).
				Str("delta", delta.String()).Msg("stock compensation failed, manual reconciliation needed")
			errs = append(errs, fmt.Errorf("compensate ingredient %d: %w", a.IngredientID, err))
		}
	}
	return errors.Join(errs...)
}
