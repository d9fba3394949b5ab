// Package demo holds the sample restaurant used for local runs: a few
// ingredients, recipes, tables and couriers.
package demo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/store/memory"
	"github.com/shopspring/decimal"
)

// Seeder stores demo rows and returns them with their assigned ids.
type Seeder interface {
	AddIngredient(ctx context.Context, i model.Ingredient) (model.Ingredient, error)
	AddProduct(ctx context.Context, p model.Product) (model.Product, error)
	AddTable(ctx context.Context, t model.Table) (model.Table, error)
	AddCourier(ctx context.Context, c model.Courier) (model.Courier, error)
}

// Summary counts what Seed created.
type Summary struct {
	Ingredients int
	Products    int
	Tables      int
	Couriers    int
}

type seedIngredient struct {
	name, unit            string
	stock, minStock, cost string
}

type seedProduct struct {
	name    string
	price   string
	recipe  map[string]string // ingredient name -> quantity per unit
	noStock bool
}

var ingredients = []seedIngredient{
	{"Rice", "g", "20000", "2000", "0.015"},
	{"Chicken", "g", "8000", "1000", "0.06"},
	{"Banana Leaf", "pc", "120", "20", "500"},
	{"Sambal", "g", "3000", "500", "0.04"},
	{"Tea Leaves", "g", "1000", "100", "0.2"},
	{"Sugar", "g", "5000", "500", "0.014"},
}

var products = []seedProduct{
	{name: "Nasi Bakar Ayam", price: "28000", recipe: map[string]string{"Rice": "200", "Chicken": "120", "Banana Leaf": "1", "Sambal": "20"}},
	{name: "Nasi Bakar Polos", price: "18000", recipe: map[string]string{"Rice": "200", "Banana Leaf": "1"}},
	{name: "Es Teh Manis", price: "8000", recipe: map[string]string{"Tea Leaves": "5", "Sugar": "20"}},
	{name: "Kerupuk", price: "3000", noStock: true},
}

// Seed creates the demo restaurant rid through s.
func Seed(ctx context.Context, s Seeder, rid uuid.UUID) (Summary, error) {
	var sum Summary

	ids := make(map[string]int64, len(ingredients))
	for _, item := range ingredients {
		ing, err := s.AddIngredient(ctx, model.Ingredient{
			RestaurantID: rid,
			Name:         item.name,
			Unit:         item.unit,
			Stock:        decimal.RequireFromString(item.stock),
			MinStock:     decimal.RequireFromString(item.minStock),
			UnitCost:     decimal.RequireFromString(item.cost),
		})
		if err != nil {
			return sum, fmt.Errorf("seed ingredient %s: %w", item.name, err)
		}
		ids[item.name] = ing.ID
		sum.Ingredients++
	}

	for _, item := range products {
		p := model.Product{
			RestaurantID:         rid,
			Name:                 item.name,
			BasePrice:            decimal.RequireFromString(item.price),
			SellableWithoutStock: item.noStock,
			IsAvailable:          true,
		}
		for name, qty := range item.recipe {
			p.Recipe = append(p.Recipe, model.RecipeItem{IngredientID: ids[name], Quantity: decimal.RequireFromString(qty)})
		}
		if _, err := s.AddProduct(ctx, p); err != nil {
			return sum, fmt.Errorf("seed product %s: %w", item.name, err)
		}
		sum.Products++
	}

	for i := 1; i <= 8; i++ {
		t := model.Table{
			RestaurantID: rid,
			Number:       fmt.Sprintf("T%d", i),
			Geometry:     model.Geometry{X: float64((i - 1) % 4 * 2), Y: float64((i - 1) / 4 * 2), Width: 1, Height: 1, Shape: "square"},
		}
		if _, err := s.AddTable(ctx, t); err != nil {
			return sum, fmt.Errorf("seed table %s: %w", t.Number, err)
		}
		sum.Tables++
	}

	for _, name := range []string{"Budi", "Sari"} {
		if _, err := s.AddCourier(ctx, model.Courier{RestaurantID: rid, Name: name}); err != nil {
			return sum, fmt.Errorf("seed courier %s: %w", name, err)
		}
		sum.Couriers++
	}
	return sum, nil
}

// Memory adapts the in-memory store to Seeder.
func Memory(st *memory.Store) Seeder {
	return memorySeeder{st}
}

type memorySeeder struct{ st *memory.Store }

func (m memorySeeder) AddIngredient(_ context.Context, i model.Ingredient) (model.Ingredient, error) {
	return m.st.AddIngredient(i), nil
}

func (m memorySeeder) AddProduct(_ context.Context, p model.Product) (model.Product, error) {
	return m.st.AddProduct(p), nil
}

func (m memorySeeder) AddTable(_ context.Context, t model.Table) (model.Table, error) {
	return m.st.AddTable(t), nil
}

func (m memorySeeder) AddCourier(_ context.Context, c model.Courier) (model.Courier, error) {
	return m.st.AddCourier(c), nil
}
