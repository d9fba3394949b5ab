// Package memory is an in-process record store with the same conditional
// write semantics as the PostgreSQL store. It backs local runs without a
// database and the orchestration tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/apperr"
	"github.com/kiwari-pos/restaurant-ops/internal/enum"
	"github.com/kiwari-pos/restaurant-ops/internal/model"
	"github.com/kiwari-pos/restaurant-ops/internal/store"
	"github.com/shopspring/decimal"
)

// Store keeps every record in maps guarded by one mutex. Values are copied
// in and out so callers never share memory with the store.
type Store struct {
	mu sync.Mutex

	nextID      int64
	orders      map[int64]model.Order
	payments    map[int64][]model.Payment
	ingredients map[int64]model.Ingredient
	products    map[int64]model.Product
	tables      map[int64]model.Table
	couriers    map[int64]model.Courier

	faults map[string][]error
	now    func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		orders:      make(map[int64]model.Order),
		payments:    make(map[int64][]model.Payment),
		ingredients: make(map[int64]model.Ingredient),
		products:    make(map[int64]model.Product),
		tables:      make(map[int64]model.Table),
		couriers:    make(map[int64]model.Courier),
		faults:      make(map[string][]error),
		now:         time.Now,
	}
}

// FailNext makes the next len(errs) calls of op return errs in order. A nil
// entry lets that call through. Op is the method name, e.g. "UpdateTable".
func (s *Store) FailNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], errs...)
}

// fault pops the next injected error for op. Callers hold s.mu.
func (s *Store) fault(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Infra(op, err)
	}
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.faults[op] = queue[1:]
	if err == nil {
		return nil
	}
	return apperr.Infra(op, err)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// --- Seeding ---

// AddIngredient stores i with a fresh id and returns it.
func (s *Store) AddIngredient(i model.Ingredient) model.Ingredient {
	s.mu.Lock()
	defer s.mu.Unlock()
	i.ID = s.id()
	i.Version = 1
	i.UpdatedAt = s.now()
	s.ingredients[i.ID] = i
	return i
}

// DeleteIngredient removes an ingredient, leaving recipes that use it dangling.
func (s *Store) DeleteIngredient(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ingredients, id)
}

// AddProduct stores p and its recipe with a fresh id.
func (s *Store) AddProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.products[p.ID] = cloneProduct(p)
	return cloneProduct(p)
}

// SetRecipe replaces a product's recipe the way a menu edit would.
func (s *Store) SetRecipe(productID int64, recipe []model.RecipeItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return
	}
	p.Recipe = recipe
	s.products[productID] = cloneProduct(p)
}

// DeleteProduct removes a product from the catalog. Orders keep their
// item snapshots.
func (s *Store) DeleteProduct(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

// AddTable stores t with a fresh id. An empty status means FREE.
func (s *Store) AddTable(t model.Table) model.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	if t.Status == "" {
		t.Status = enum.TableStatusFree
	}
	t.Version = 1
	t.UpdatedAt = s.now()
	s.tables[t.ID] = cloneTable(t)
	return cloneTable(t)
}

// AddCourier stores c with a fresh id. An empty status means AVAILABLE.
func (s *Store) AddCourier(c model.Courier) model.Courier {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	if c.Status == "" {
		c.Status = enum.CourierStatusAvailable
	}
	c.UpdatedAt = s.now()
	s.couriers[c.ID] = c
	return c
}

// --- Orders ---

func (s *Store) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "CreateOrder"); err != nil {
		return model.Order{}, err
	}

	o.ID = s.id()
	o.Version = 1
	o.CreatedAt = s.now()
	o.UpdatedAt = o.CreatedAt
	items := make([]model.OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.ID = s.id()
		item.OrderID = o.ID
		items[i] = item
	}
	o.Items = items
	o.Consumption = nil
	o.Payments = nil
	s.orders[o.ID] = o
	return s.orderView(o), nil
}

func (s *Store) GetOrder(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "GetOrder"); err != nil {
		return model.Order{}, err
	}
	o, ok := s.orders[id]
	if !ok || o.RestaurantID != restaurantID {
		return model.Order{}, apperr.NotFound("order", id)
	}
	return s.orderView(o), nil
}

func (s *Store) ListOrders(ctx context.Context, restaurantID uuid.UUID, statuses []enum.OrderStatus) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "ListOrders"); err != nil {
		return nil, err
	}
	want := make(map[enum.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	out := []model.Order{}
	for _, o := range s.orders {
		if o.RestaurantID != restaurantID || (len(want) > 0 && !want[o.Status]) {
			continue
		}
		out = append(out, s.orderView(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TransitionOrder(ctx context.Context, arg store.TransitionOrderParams) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "TransitionOrder"); err != nil {
		return model.Order{}, err
	}
	o, ok := s.orders[arg.ID]
	if !ok || o.RestaurantID != arg.RestaurantID {
		return model.Order{}, apperr.NotFound("order", arg.ID)
	}
	if o.Status != arg.From {
		return model.Order{}, fmt.Errorf("order %d: %w", arg.ID, apperr.ErrStaleStatus)
	}
	o.Status = arg.To
	o.StockDeducted = arg.StockDeducted
	o.Consumption = slices.Clone(arg.Consumption)
	o.Version++
	o.UpdatedAt = s.now()
	s.orders[o.ID] = o
	return s.orderView(o), nil
}

func (s *Store) SetOrderCourier(ctx context.Context, restaurantID uuid.UUID, id int64, courierID *int64) (model.Order, error) {
	return s.setOrderRef(ctx, "SetOrderCourier", restaurantID, id, func(o *model.Order) { o.CourierID = copyID(courierID) })
}

func (s *Store) SetOrderWaiter(ctx context.Context, restaurantID uuid.UUID, id int64, waiterID *int64) (model.Order, error) {
	return s.setOrderRef(ctx, "SetOrderWaiter", restaurantID, id, func(o *model.Order) { o.WaiterID = copyID(waiterID) })
}

func (s *Store) setOrderRef(ctx context.Context, op string, restaurantID uuid.UUID, id int64, set func(*model.Order)) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, op); err != nil {
		return model.Order{}, err
	}
	o, ok := s.orders[id]
	if !ok || o.RestaurantID != restaurantID {
		return model.Order{}, apperr.NotFound("order", id)
	}
	set(&o)
	o.Version++
	o.UpdatedAt = s.now()
	s.orders[id] = o
	return s.orderView(o), nil
}

// orderView returns a copy of o with its payments attached.
func (s *Store) orderView(o model.Order) model.Order {
	o.Items = append([]model.OrderItem{}, o.Items...)
	o.Consumption = slices.Clone(o.Consumption)
	o.Payments = append([]model.Payment{}, s.payments[o.ID]...)
	return o
}

// --- Payments ---

func (s *Store) CreatePayment(ctx context.Context, p model.Payment) (model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "CreatePayment"); err != nil {
		return model.Payment{}, err
	}
	if _, ok := s.orders[p.OrderID]; !ok {
		return model.Payment{}, apperr.NotFound("order", p.OrderID)
	}
	p.ID = s.id()
	p.CreatedAt = s.now()
	s.payments[p.OrderID] = append(s.payments[p.OrderID], p)
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, orderID int64) ([]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "ListPayments"); err != nil {
		return nil, err
	}
	return append([]model.Payment{}, s.payments[orderID]...), nil
}

// --- Inventory ---

func (s *Store) GetProducts(ctx context.Context, restaurantID uuid.UUID, ids []int64) (map[int64]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "GetProducts"); err != nil {
		return nil, err
	}
	out := make(map[int64]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.RestaurantID == restaurantID {
			out[id] = cloneProduct(p)
		}
	}
	return out, nil
}

func (s *Store) ListProducts(ctx context.Context, restaurantID uuid.UUID) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "ListProducts"); err != nil {
		return nil, err
	}
	out := []model.Product{}
	for _, p := range s.products {
		if p.RestaurantID == restaurantID {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListIngredients(ctx context.Context, restaurantID uuid.UUID) ([]model.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "ListIngredients"); err != nil {
		return nil, err
	}
	out := []model.Ingredient{}
	for _, i := range s.ingredients {
		if i.RestaurantID == restaurantID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// Ingredient returns the current row of an ingredient.
func (s *Store) Ingredient(id int64) (model.Ingredient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.ingredients[id]
	return i, ok
}

func (s *Store) AdjustIngredientStock(ctx context.Context, restaurantID uuid.UUID, ingredientID int64, delta decimal.Decimal) (model.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "AdjustIngredientStock"); err != nil {
		return model.Ingredient{}, err
	}
	i, ok := s.ingredients[ingredientID]
	if !ok || i.RestaurantID != restaurantID {
		return model.Ingredient{}, apperr.NotFound("ingredient", ingredientID)
	}
	i.Stock = i.Stock.Add(delta)
	i.Version++
	i.UpdatedAt = s.now()
	s.ingredients[i.ID] = i
	return i, nil
}

// --- Tables ---

func (s *Store) GetTable(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "GetTable"); err != nil {
		return model.Table{}, err
	}
	t, ok := s.tables[id]
	if !ok || t.RestaurantID != restaurantID {
		return model.Table{}, apperr.NotFound("table", id)
	}
	return cloneTable(t), nil
}

func (s *Store) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error) {
	return s.listTables(ctx, "ListTables", func(t model.Table) bool { return t.RestaurantID == restaurantID })
}

func (s *Store) ListGroupTables(ctx context.Context, restaurantID uuid.UUID, groupID uuid.UUID) ([]model.Table, error) {
	return s.listTables(ctx, "ListGroupTables", func(t model.Table) bool {
		return t.RestaurantID == restaurantID && t.GroupID != nil && *t.GroupID == groupID
	})
}

func (s *Store) listTables(ctx context.Context, op string, keep func(model.Table) bool) ([]model.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, op); err != nil {
		return nil, err
	}
	out := []model.Table{}
	for _, t := range s.tables {
		if keep(t) {
			out = append(out, cloneTable(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateTable(ctx context.Context, t model.Table) (model.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "UpdateTable"); err != nil {
		return model.Table{}, err
	}
	cur, ok := s.tables[t.ID]
	if !ok || cur.RestaurantID != t.RestaurantID {
		return model.Table{}, apperr.NotFound("table", t.ID)
	}
	if cur.Version != t.Version {
		return model.Table{}, fmt.Errorf("table %d: %w", t.ID, apperr.ErrStaleStatus)
	}
	cur.Status = t.Status
	cur.GroupID = t.GroupID
	cur.OrderID = copyID(t.OrderID)
	cur.WaiterID = copyID(t.WaiterID)
	cur.Version++
	cur.UpdatedAt = s.now()
	s.tables[cur.ID] = cloneTable(cur)
	return cloneTable(cur), nil
}

// --- Couriers ---

func (s *Store) GetCourier(ctx context.Context, restaurantID uuid.UUID, id int64) (model.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "GetCourier"); err != nil {
		return model.Courier{}, err
	}
	c, ok := s.couriers[id]
	if !ok || c.RestaurantID != restaurantID {
		return model.Courier{}, apperr.NotFound("courier", id)
	}
	return c, nil
}

func (s *Store) ListCouriers(ctx context.Context, restaurantID uuid.UUID) ([]model.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "ListCouriers"); err != nil {
		return nil, err
	}
	out := []model.Courier{}
	for _, c := range s.couriers {
		if c.RestaurantID == restaurantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateCourierStatus(ctx context.Context, restaurantID uuid.UUID, id int64, expected *enum.CourierStatus, to enum.CourierStatus) (model.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(ctx, "UpdateCourierStatus"); err != nil {
		return model.Courier{}, err
	}
	c, ok := s.couriers[id]
	if !ok || c.RestaurantID != restaurantID {
		return model.Courier{}, apperr.NotFound("courier", id)
	}
	if expected != nil && c.Status != *expected {
		return model.Courier{}, fmt.Errorf("courier %d: %w", id, apperr.ErrStaleStatus)
	}
	c.Status = to
	c.UpdatedAt = s.now()
	s.couriers[id] = c
	return c, nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTable(t model.Table) model.Table {
	t.OrderID = copyID(t.OrderID)
	t.WaiterID = copyID(t.WaiterID)
	t.SectorID = copyID(t.SectorID)
	if t.GroupID != nil {
		g := *t.GroupID
		t.GroupID = &g
	}
	return t
}

func cloneProduct(p model.Product) model.Product {
	p.Recipe = append([]model.RecipeItem{}, p.Recipe...)
	return p
}
