package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/shopspring/decimal"
)

// Order is a customer order with its item and payment snapshots.
type Order struct {
	ID            int64                `json:"id"`
	RestaurantID  uuid.UUID            `json:"restaurant_id"`
	CustomerID    *int64               `json:"customer_id,omitempty"`
	Type          enum.OrderType       `json:"type"`
	Channel       enum.Channel         `json:"channel"`
	Status        enum.OrderStatus     `json:"status"`
	Items         []OrderItem          `json:"items"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Discount      decimal.Decimal      `json:"discount"`
	Tax           decimal.Decimal      `json:"tax"`
	Tip           decimal.Decimal      `json:"tip"`
	Total         decimal.Decimal      `json:"total"`
	TableID       *int64               `json:"table_id,omitempty"`
	WaiterID      *int64               `json:"waiter_id,omitempty"`
	CourierID     *int64               `json:"courier_id,omitempty"`
	Notes         string               `json:"notes"`
	StockDeducted bool                 `json:"stock_deducted"`
	Consumption   []ConsumedIngredient `json:"consumption,omitempty"`
	Payments      []Payment            `json:"payments"`
	Version       int64                `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// OrderItem snapshots product name and price at order time.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Notes       string          `json:"notes"`
}

// ConsumedIngredient is stock an order took from one ingredient. An order's
// Consumption is recorded together with StockDeducted and cleared when the
// stock is returned.
type ConsumedIngredient struct {
	IngredientID int64           `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// Payment is append-only.
type Payment struct {
	ID        int64              `json:"id"`
	OrderID   int64              `json:"order_id"`
	Status    enum.PaymentStatus `json:"status"`
	Method    enum.PaymentMethod `json:"method"`
	Reference string             `json:"reference"`
	Amount    decimal.Decimal    `json:"amount"`
	CreatedAt time.Time          `json:"created_at"`
}

type Ingredient struct {
	ID           int64           `json:"id"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Stock        decimal.Decimal `json:"stock"`
	MinStock     decimal.Decimal `json:"min_stock"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Version      int64           `json:"version"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Low reports whether stock is at or below the minimum threshold.
func (i Ingredient) Low() bool {
	return i.Stock.LessThanOrEqual(i.MinStock)
}

// RecipeItem is the quantity of an ingredient consumed per product unit.
type RecipeItem struct {
	IngredientID int64           `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type Product struct {
	ID                   int64           `json:"id"`
	RestaurantID         uuid.UUID       `json:"restaurant_id"`
	Name                 string          `json:"name"`
	BasePrice            decimal.Decimal `json:"base_price"`
	Recipe               []RecipeItem    `json:"recipe"`
	SellableWithoutStock bool            `json:"sellable_without_stock"`
	IsAvailable          bool            `json:"is_available"`
}

type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Shape  string  `json:"shape"`
}

// Table is a dining table. Tables sharing GroupID act as one unit.
type Table struct {
	ID           int64            `json:"id"`
	RestaurantID uuid.UUID        `json:"restaurant_id"`
	Number       string           `json:"number"`
	SectorID     *int64           `json:"sector_id,omitempty"`
	GroupID      *uuid.UUID       `json:"group_id,omitempty"`
	Status       enum.TableStatus `json:"status"`
	OrderID      *int64           `json:"order_id,omitempty"`
	WaiterID     *int64           `json:"waiter_id,omitempty"`
	Geometry     Geometry         `json:"geometry"`
	Version      int64            `json:"version"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type Courier struct {
	ID           int64              `json:"id"`
	RestaurantID uuid.UUID          `json:"restaurant_id"`
	Name         string             `json:"name"`
	Status       enum.CourierStatus `json:"status"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
