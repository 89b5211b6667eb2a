package domain

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "PLACED"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusReady          OrderStatus = "READY"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusPlaced:         "Placed",
	OrderStatusConfirmed:      "Confirmed",
	OrderStatusReady:          "Ready",
	OrderStatusOutForDelivery: "Out for Delivery",
	OrderStatusDelivered:      "Delivered",
	OrderStatusCancelled:      "Cancelled",
}

// Label returns the customer-facing name of the status.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Cancellable reports whether the customer may still cancel the order.
// The shop has not acted on it only while it is PLACED.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPlaced
}

// PaymentMethod is how the customer settles an order with the shop.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "CASH"
	PaymentUPI    PaymentMethod = "UPI"
	PaymentOnline PaymentMethod = "ONLINE"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case PaymentCash, PaymentUPI, PaymentOnline:
		return m, true
	}
	return "", false
}

// UsesUPI reports whether the method is settled through the shop's UPI id.
func (m PaymentMethod) UsesUPI() bool {
	return m == PaymentUPI || m == PaymentOnline
}

type OrderItem struct {
	ID          ID     `json:"id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   Amount `json:"unit_price"`
	TotalPrice  Amount `json:"total_price"`
}

type Order struct {
	ID            ID            `json:"id"`
	OrderNumber   string        `json:"order_number,omitempty"`
	Status        OrderStatus   `json:"status"`
	InvoiceStatus string        `json:"invoice_status,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
	TotalAmount   Amount        `json:"total_amount"`
	Items         []OrderItem   `json:"items"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// DisplayNumber prefers the shop-facing order number over the raw id.
func (o Order) DisplayNumber() string {
	if o.OrderNumber != "" {
		return o.OrderNumber
	}
	return o.ID.String()
}

// OrderStatusInfo is the lightweight status poll result for an order.
type OrderStatusInfo struct {
	OrderID   ID          `json:"order_id"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type Pagination struct {
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Take  int `json:"take"`
}
