package inventory

import (
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/shopspring/decimal"
)

// Availability is derived from a product's recipe and current stock.
// It is never stored.
type Availability struct {
	ProductID int64           `json:"product_id"`
	Cost      decimal.Decimal `json:"cost"`
	// Count is the number of units current stock can produce.
	// Meaningless when Unlimited is set.
	Count     int64   `json:"count"`
	Unlimited bool    `json:"unlimited"`
	Available bool    `json:"available"`
	Dangling  []int64 `json:"dangling_ingredients,omitempty"` // recipe ingredients that no longer exist
}

// ComputeAvailability derives cost, producible count and effective
// availability of p against stock. A recipe that references a missing
// ingredient makes the product unavailable whatever its flags say.
func ComputeAvailability(p model.Product, stock map[int64]model.Ingredient) Availability {
	a := Availability{ProductID: p.ID, Cost: decimal.Zero}

	if len(p.Recipe) == 0 {
		a.Unlimited = true
		a.Available = p.IsAvailable
		return a
	}

	first := true
	for _, ri := range p.Recipe {
		ing, ok := stock[ri.IngredientID]
		if !ok {
			a.Dangling = append(a.Dangling, ri.IngredientID)
			continue
		}
		a.Cost = a.Cost.Add(ri.Quantity.Mul(ing.UnitCost))

		if !ri.Quantity.IsPositive() {
			continue
		}
		n := ing.Stock.Div(ri.Quantity).Floor().IntPart()
		if n < 0 {
			n = 0
		}
		if first || n < a.Count {
			a.Count = n
			first = false
		}
	}

	if len(a.Dangling) > 0 {
		a.Count = 0
		a.Available = false
		return a
	}
	if first {
		// every recipe line had a non-positive quantity
		a.Unlimited = true
	}

	a.Available = p.IsAvailable && (p.SellableWithoutStock || a.Unlimited || a.Count > 0)
	return a
}

// IndexIngredients keys ingredients by id.
func IndexIngredients(list []model.Ingredient) map[int64]model.Ingredient {
	m := make(map[int64]model.Ingredient, len(list))
	for _, ing := range list {
		m[ing.ID] = ing
	}
	return m
}
