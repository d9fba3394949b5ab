package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/inventory"
	"github.com/kiwari-pos/restaurant-ops/internal/lifecycle"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/notify"
	"github.com/kiwari-pos/restaurant-ops/internal/payment"
	"github.com/shopspring/decimal"
)

// Errors returned by order creation.
var (
	ErrEmptyItems         = fmt.Errorf("%w: items are required", apperr.ErrInsufficientInput)
	ErrInvalidOrderType   = fmt.Errorf("%w: invalid order type", apperr.ErrInsufficientInput)
	ErrInvalidChannel     = fmt.Errorf("%w: invalid channel", apperr.ErrInsufficientInput)
	ErrInvalidQuantity    = fmt.Errorf("%w: quantity must be > 0", apperr.ErrInsufficientInput)
	ErrNegativeAmount     = fmt.Errorf("%w: discount, tax and tip must not be negative", apperr.ErrInsufficientInput)
	ErrProductNotFound    = fmt.Errorf("%w: product not found in restaurant", apperr.ErrInsufficientInput)
	ErrProductUnavailable = fmt.Errorf("%w: product is unavailable", apperr.ErrInsufficientInput)
	ErrTableRequired      = fmt.Errorf("%w: table is required for dine-in service", apperr.ErrInsufficientInput)
)

// CreateOrderRequest is the input for creating an order.
type CreateOrderRequest struct {
	RestaurantID uuid.UUID
	Type         enum.OrderType
	Channel      enum.Channel
	CustomerID   *int64
	TableID      *int64
	WaiterID     *int64
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	Tip          decimal.Decimal
	Notes        string
	Items        []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line of the order.
type CreateOrderItemRequest struct {
	ProductID int64
	Quantity  int32
	Notes     string
}

// OpenTableResult is the order created for a table and the occupied tables.
type OpenTableResult struct {
	Order  model.Order
	Tables []model.Table
}

// CreateOrder validates the request, snapshots names and prices and stores
// the order. Staff orders start NEW; online orders wait for payment. A
// request naming a table is routed through OpenTable.
func (o *Orchestrator) CreateOrder(ctx context.Context, req CreateOrderRequest) (model.Order, error) {
	if req.TableID != nil {
		res, err := o.OpenTable(ctx, req)
		if err != nil {
			return model.Order{}, err
		}
		return res.Order, nil
	}
	order, err := o.createOrder(ctx, req)
	if err != nil {
		return model.Order{}, err
	}
	o.publish(ctx, order.RestaurantID, notify.EntityOrder, notify.OpInsert, order)
	return order, nil
}

// OpenTable seats a dine-in order at a table and every table grouped with
// it. If no table could be linked, the new order is cancelled again.
func (o *Orchestrator) OpenTable(ctx context.Context, req CreateOrderRequest) (*OpenTableResult, error) {
	if req.TableID == nil {
		return nil, ErrTableRequired
	}
	if req.Type == "" {
		req.Type = enum.OrderTypeDineIn
	}
	if req.Type != enum.OrderTypeDineIn {
		return nil, apperr.Invalid("only dine-in orders can open a table")
	}

	// --- Check the group before creating anything ---
	members, err := o.floor.Openable(ctx, req.RestaurantID, *req.TableID)
	if err != nil {
		return nil, err
	}

	order, err := o.createOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	o.publish(ctx, order.RestaurantID, notify.EntityOrder, notify.OpInsert, order)

	tables, err := o.floor.Occupy(ctx, members, order.ID, req.WaiterID)
	if err != nil {
		var partial *apperr.PartialGroupUpdateError
		if errors.As(err, &partial) {
			// some tables are linked; the order stays open for reconciliation
			return nil, err
		}
		return nil, o.abandonOrder(ctx, order, err)
	}
	o.publishTables(ctx, order.RestaurantID, tables)
	return &OpenTableResult{Order: order, Tables: tables}, nil
}

// abandonOrder cancels an order whose table could not be opened.
func (o *Orchestrator) abandonOrder(ctx context.Context, order model.Order, cause error) error {
	res, err := o.machine.Transition(context.WithoutCancel(ctx), lifecycle.Request{
		RestaurantID: order.RestaurantID,
		OrderID:      order.ID,
		To:           enum.OrderStatusCancelled,
		Cause:        lifecycle.CauseStaff,
	})
	if err != nil {
		o.logger.Error().Err(err).Int64("order_id", order.ID).Msg("cancel order after failed table open")
		return fmt.Errorf("open table: %w", errors.Join(cause, err))
	}
	o.publish(ctx, order.RestaurantID, notify.EntityOrder, notify.OpUpdate, res.Order)
	return fmt.Errorf("open table: %w", cause)
}

func (o *Orchestrator) createOrder(ctx context.Context, req CreateOrderRequest) (model.Order, error) {
	// --- Validate header ---
	if !req.Type.Valid() {
		return model.Order{}, ErrInvalidOrderType
	}
	if req.Channel == "" {
		req.Channel = enum.ChannelStaff
	}
	if !req.Channel.Valid() {
		return model.Order{}, ErrInvalidChannel
	}
	if len(req.Items) == 0 {
		return model.Order{}, ErrEmptyItems
	}
	if req.Discount.IsNegative() || req.Tax.IsNegative() || req.Tip.IsNegative() {
		return model.Order{}, ErrNegativeAmount
	}
	if req.Type == enum.OrderTypeDineIn && req.TableID == nil {
		return model.Order{}, ErrTableRequired
	}

	// --- Load products and stock ---
	ids := make([]int64, 0, len(req.Items))
	requested := make(map[int64]int64, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if _, seen := requested[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		requested[item.ProductID] += int64(item.Quantity)
	}
	products, err := o.store.GetProducts(ctx, req.RestaurantID, ids)
	if err != nil {
		return model.Order{}, fmt.Errorf("get products: %w", err)
	}
	ingredients, err := o.store.ListIngredients(ctx, req.RestaurantID)
	if err != nil {
		return model.Order{}, fmt.Errorf("list ingredients: %w", err)
	}
	stock := inventory.IndexIngredients(ingredients)

	// --- Snapshot items ---
	subtotal := decimal.Zero
	items := make([]model.OrderItem, 0, len(req.Items))
	for i, item := range req.Items {
		p, ok := products[item.ProductID]
		if !ok {
			return model.Order{}, fmt.Errorf("item[%d]: product %d: %w", i, item.ProductID, ErrProductNotFound)
		}
		av := inventory.ComputeAvailability(p, stock)
		if !av.Available {
			return model.Order{}, fmt.Errorf("item[%d]: %s: %w", i, p.Name, ErrProductUnavailable)
		}
		if !av.Unlimited && !p.SellableWithoutStock && requested[p.ID] > av.Count {
			return model.Order{}, fmt.Errorf("item[%d]: %s: only %d left: %w", i, p.Name, av.Count, ErrProductUnavailable)
		}

		line := p.BasePrice.Mul(decimal.NewFromInt32(item.Quantity))
		subtotal = subtotal.Add(line)
		items = append(items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			UnitPrice:   p.BasePrice,
			LineTotal:   line,
			Notes:       strings.TrimSpace(item.Notes),
		})
	}

	// --- Calculate total ---
	total := subtotal.Sub(req.Discount).Add(req.Tax)
	if total.IsNegative() {
		total = decimal.Zero
	}

	status := enum.OrderStatusNew
	if req.Channel == enum.ChannelOnline {
		status = enum.OrderStatusPendingPayment
	}

	order, err := o.store.CreateOrder(ctx, model.Order{
		RestaurantID: req.RestaurantID,
		CustomerID:   req.CustomerID,
		Type:         req.Type,
		Channel:      req.Channel,
		Status:       status,
		Items:        items,
		Subtotal:     subtotal,
		Discount:     req.Discount,
		Tax:          req.Tax,
		Tip:          req.Tip,
		Total:        total,
		TableID:      req.TableID,
		WaiterID:     req.WaiterID,
		Notes:        strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}
	o.logger.Info().Int64("order_id", order.ID).Str("type", string(order.Type)).
		Str("status", string(order.Status)).Str("total", order.Total.StringFixed(2)).Msg("order created")
	return order, nil
}

// GetOrder returns an order with its items and payments.
func (o *Orchestrator) GetOrder(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Order, error) {
	return o.store.GetOrder(ctx, restaurantID, id)
}

// ListOrders returns orders in the given statuses, or all when none given.
func (o *Orchestrator) ListOrders(ctx context.Context, restaurantID uuid.UUID, statuses []enum.OrderStatus) ([]model.Order, error) {
	for _, s := range statuses {
		if !s.Valid() {
			return nil, apperr.Invalid("unknown status %q", s)
		}
	}
	return o.store.ListOrders(ctx, restaurantID, statuses)
}

// UpdateOrderStatus is a staff-driven transition. A non-empty expected
// status turns the request into a compare-and-swap against what the
// caller last saw.
func (o *Orchestrator) UpdateOrderStatus(ctx context.Context, restaurantID uuid.UUID, id int64, to, expected enum.OrderStatus) (model.Order, error) {
	return o.transition(ctx, lifecycle.Request{
		RestaurantID: restaurantID,
		OrderID:      id,
		To:           to,
		Cause:        lifecycle.CauseStaff,
		Expected:     expected,
	})
}

// ApproveOrder releases a PENDING_PAYMENT order to the kitchen without
// full payment.
func (o *Orchestrator) ApproveOrder(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Order, error) {
	return o.transition(ctx, lifecycle.Request{
		RestaurantID: restaurantID,
		OrderID:      id,
		To:           enum.OrderStatusNew,
		Cause:        lifecycle.CauseApproval,
		Expected:     enum.OrderStatusPendingPayment,
	})
}

// ReportIncident records a delivery problem: to is INCIDENT or RETURNED.
func (o *Orchestrator) ReportIncident(ctx context.Context, restaurantID uuid.UUID, id int64, to enum.OrderStatus) (model.Order, error) {
	if to != enum.OrderStatusIncident && to != enum.OrderStatusReturned {
		return model.Order{}, apperr.Invalid("a report moves an order to INCIDENT or RETURNED, not %s", to)
	}
	return o.transition(ctx, lifecycle.Request{
		RestaurantID: restaurantID,
		OrderID:      id,
		To:           to,
		Cause:        lifecycle.CauseReport,
	})
}

// CancelOrder cancels an order, restituting stock already deducted.
func (o *Orchestrator) CancelOrder(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Order, error) {
	return o.transition(ctx, lifecycle.Request{
		RestaurantID: restaurantID,
		OrderID:      id,
		To:           enum.OrderStatusCancelled,
		Cause:        lifecycle.CauseStaff,
	})
}

// transition runs the machine and then the floor side effects the machine
// does not know about. Everything committed is published.
func (o *Orchestrator) transition(ctx context.Context, req lifecycle.Request) (model.Order, error) {
	res, err := o.machine.Transition(ctx, req)
	var followUp *apperr.FollowUpError
	if err != nil && !errors.As(err, &followUp) {
		return model.Order{}, err
	}

	order := res.Order
	if res.Changed {
		o.publish(ctx, order.RestaurantID, notify.EntityOrder, notify.OpUpdate, order)
		o.publishIngredients(ctx, order.RestaurantID, res.Adjusted)
	}
	if res.ReleasedCourier != nil {
		o.publish(ctx, order.RestaurantID, notify.EntityCourier, notify.OpUpdate, res.ReleasedCourier)
	}
	if followUp != nil {
		followUp.Result = order
		return order, followUp
	}

	if res.Changed && needsCleaning(order) {
		tables, err := o.floor.MarkNeedsCleaning(ctx, order.RestaurantID, *order.TableID)
		if err != nil {
			o.logger.Error().Err(err).Int64("order_id", order.ID).Int64("table_id", *order.TableID).
				Msg("mark table for cleaning")
			return order, &apperr.FollowUpError{Step: "mark table for cleaning", Result: order, Err: err}
		}
		o.publishTables(ctx, order.RestaurantID, tables)
	}
	return order, nil
}

// needsCleaning reports whether a dine-in visit just ended.
func needsCleaning(order model.Order) bool {
	if order.Type != enum.OrderTypeDineIn || order.TableID == nil {
		return false
	}
	switch order.Status {
	case enum.OrderStatusCancelled:
		return true
	case enum.OrderStatusDelivered:
		return payment.IsPaid(order)
	}
	return false
}
