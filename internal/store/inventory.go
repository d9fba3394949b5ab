package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/shopspring/decimal"
)

const ingredientColumns = `id, restaurant_id, name, unit, stock, min_stock, unit_cost, version, updated_at`

func scanIngredient(row pgx.Row) (model.Ingredient, error) {
	var i model.Ingredient
	var nums [3]pgtype.Numeric
	err := row.Scan(&i.ID, &i.RestaurantID, &i.Name, &i.Unit, &nums[0], &nums[1], &nums[2], &i.Version, &i.UpdatedAt)
	if err != nil {
		return model.Ingredient{}, err
	}
	return i, toDecimals(nums[:], &i.Stock, &i.MinStock, &i.UnitCost)
}

// ListIngredients returns every ingredient of a restaurant by id.
func (s *Store) ListIngredients(ctx context.Context, restaurantID uuid.UUID) ([]model.Ingredient, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT `+ingredientColumns+` FROM ingredients WHERE restaurant_id = $1 ORDER BY id`, restaurantID)
	if err != nil {
		return nil, apperr.Infra("list ingredients", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Ingredient, error) {
		return scanIngredient(row)
	})
	if err != nil {
		return nil, apperr.Infra("list ingredients", err)
	}
	return list, nil
}

// AdjustIngredientStock applies stock = stock + delta in a single statement.
func (s *Store) AdjustIngredientStock(ctx context.Context, restaurantID uuid.UUID, ingredientID int64, delta decimal.Decimal) (model.Ingredient, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ing, err := scanIngredient(s.db.QueryRow(ctx, `
		UPDATE ingredients
		SET stock = stock + $3, version = version + 1, updated_at = now()
		WHERE restaurant_id = $1 AND id = $2
		RETURNING `+ingredientColumns,
		restaurantID, ingredientID, decimalToNumeric(delta)))
	if err != nil {
		return model.Ingredient{}, wrap("adjust ingredient stock", "ingredient", ingredientID, err)
	}
	return ing, nil
}

// GetProducts returns the requested products with their recipes, keyed by
// id. Unknown ids are absent from the map.
func (s *Store) GetProducts(ctx context.Context, restaurantID uuid.UUID, ids []int64) (map[int64]model.Product, error) {
	products, err := s.queryProducts(ctx, restaurantID, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]model.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// ListProducts returns every product of a restaurant with its recipe.
func (s *Store) ListProducts(ctx context.Context, restaurantID uuid.UUID) ([]model.Product, error) {
	return s.queryProducts(ctx, restaurantID, nil)
}

// queryProducts loads products and recipes; nil ids selects all.
func (s *Store) queryProducts(ctx context.Context, restaurantID uuid.UUID, ids []int64) ([]model.Product, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT id, restaurant_id, name, base_price, sellable_without_stock, is_available
		FROM products
		WHERE restaurant_id = $1 AND ($2::bigint[] IS NULL OR id = ANY($2))
		ORDER BY id`, restaurantID, ids)
	if err != nil {
		return nil, apperr.Infra("list products", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Product, error) {
		var p model.Product
		var price pgtype.Numeric
		if err := row.Scan(&p.ID, &p.RestaurantID, &p.Name, &price, &p.SellableWithoutStock, &p.IsAvailable); err != nil {
			return p, err
		}
		return p, toDecimals([]pgtype.Numeric{price}, &p.BasePrice)
	})
	if err != nil {
		return nil, apperr.Infra("list products", err)
	}
	if len(products) == 0 {
		return products, nil
	}

	index := make(map[int64]int, len(products))
	productIDs := make([]int64, len(products))
	for i, p := range products {
		index[p.ID] = i
		productIDs[i] = p.ID
		products[i].Recipe = []model.RecipeItem{}
	}

	rows, err = s.db.Query(ctx, `
		SELECT product_id, ingredient_id, quantity
		FROM recipe_items WHERE product_id = ANY($1)
		ORDER BY product_id, ingredient_id`, productIDs)
	if err != nil {
		return nil, apperr.Infra("list recipe items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var productID int64
		var ri model.RecipeItem
		var qty pgtype.Numeric
		if err := rows.Scan(&productID, &ri.IngredientID, &qty); err != nil {
			return nil, apperr.Infra("scan recipe item", err)
		}
		if err := toDecimals([]pgtype.Numeric{qty}, &ri.Quantity); err != nil {
			return nil, err
		}
		i := index[productID]
		products[i].Recipe = append(products[i].Recipe, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Infra("list recipe items", err)
	}
	return products, nil
}
