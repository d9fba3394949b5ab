package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusNew            OrderStatus = "NEW"
	OrderStatusInPreparation  OrderStatus = "IN_PREPARATION"
	OrderStatusReady          OrderStatus = "READY"
	OrderStatusEnRoute        OrderStatus = "EN_ROUTE"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusIncident       OrderStatus = "INCIDENT"
	OrderStatusReturned       OrderStatus = "RETURNED"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusNew, OrderStatusInPreparation,
		OrderStatusReady, OrderStatusEnRoute, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusIncident, OrderStatusReturned:
		return true
	}
	return false
}

// Terminal reports whether no lifecycle progression is defined after s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	}
	return false
}

// TableStatus is the occupancy state of a table.
type TableStatus string

const (
	TableStatusFree            TableStatus = "FREE"
	TableStatusOccupied        TableStatus = "OCCUPIED"
	TableStatusNeedsAttention  TableStatus = "NEEDS_ATTENTION"
	TableStatusRequestingCheck TableStatus = "REQUESTING_CHECK"
	TableStatusNeedsCleaning   TableStatus = "NEEDS_CLEANING"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableStatusFree, TableStatusOccupied, TableStatusNeedsAttention,
		TableStatusRequestingCheck, TableStatusNeedsCleaning:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type CourierStatus string

const (
	CourierStatusAvailable CourierStatus = "AVAILABLE"
	CourierStatusBusy      CourierStatus = "BUSY"
	CourierStatusOffline   CourierStatus = "OFFLINE"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	RoleOwner    = "OWNER"
	RoleManager  = "MANAGER"
	RoleWaiter   = "WAITER"
	RoleKitchen  = "KITCHEN"
	RoleCashier  = "CASHIER"
	RoleDelivery = "DELIVERY"
)

type OrderType string

const (
	OrderTypeDineIn   OrderType = "DINE_IN"
	OrderTypeTakeaway OrderType = "TAKEAWAY"
	OrderTypeDelivery OrderType = "DELIVERY"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	}
	return false
}

// Channel is where an order was placed. ONLINE orders wait for payment
// before the kitchen sees them.
type Channel string

const (
	ChannelStaff  Channel = "STAFF"
	ChannelOnline Channel = "ONLINE"
)

func (c Channel) Valid() bool {
	return c == ChannelStaff || c == ChannelOnline
}

// ── Group B: Configurable labels (no DB constraint) ──

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodWalletQR     PaymentMethod = "WALLET_QR"
	PaymentMethodTransfer     PaymentMethod = "TRANSFER"
	PaymentMethodHouseAccount PaymentMethod = "HOUSE_ACCOUNT"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodWalletQR,
		PaymentMethodTransfer, PaymentMethodHouseAccount:
		return true
	}
	return false
}
