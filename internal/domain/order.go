package domain

import "time"

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Sign returns +1 for buys and -1 for sells, the factor applied to
// position quantity when a fill lands.
func (s OrderSide) Sign() int64 {
	if s == OrderSideSell {
		return -1
	}
	return 1
}

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// OrderStatus tracks the order lifecycle. Orders live for at most one
// bar: any order still PENDING after its bar resolves is CANCELED.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// Order is a sized instruction emitted by the risk manager. Quantity is
// always positive; direction is carried by Side.
type Order struct {
	OrderID   string // deterministic hash, see idhash
	CreatedAt time.Time
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Quantity  int64
	// LimitPrice is required for LIMIT orders, StopPrice for STOP orders.
	LimitPrice *float64
	StopPrice  *float64
	Status     OrderStatus
	Reason     string // propagated from the originating signal
}

// Terminal reports whether the order has reached a final state.
func (o *Order) Terminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCanceled
}
