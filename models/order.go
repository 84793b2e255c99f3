package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsValidOrderStatus reports set membership; transitions are otherwise
// unrestricted between non-terminal states.
func IsValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminalOrderStatus reports whether no further status changes are
// accepted.
func IsTerminalOrderStatus(status OrderStatus) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

type Order struct {
	ID                 int         `json:"id"`
	UserID             int         `json:"user_id"`
	TotalCents         int64       `json:"total_cents"`
	ShippingStreet     string      `json:"shipping_street"`
	ShippingCity       string      `json:"shipping_city"`
	ShippingPostalCode string      `json:"shipping_postal_code"`
	Status             OrderStatus `json:"status"`
	Items              []OrderItem `json:"items,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// OrderItem captures the price at purchase time; it is never recomputed
// from the live catalog.
type OrderItem struct {
	ID         int   `json:"id"`
	OrderID    int   `json:"order_id"`
	ProductID  int   `json:"product_id"`
	Quantity   int   `json:"quantity"`
	PriceCents int64 `json:"price_cents"`
}

type CreateOrderRequest struct {
	TotalCents         int64                    `json:"total_cents" binding:"required,gt=0"`
	ShippingStreet     string                   `json:"shipping_street" binding:"required"`
	ShippingCity       string                   `json:"shipping_city" binding:"required"`
	ShippingPostalCode string                   `json:"shipping_postal_code" binding:"required"`
	Items              []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type CreateOrderItemRequest struct {
	ProductID  int   `json:"product_id" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required,gt=0"`
	PriceCents int64 `json:"price_cents" binding:"gte=0"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

type OrderEvent struct {
	OrderID    int         `json:"order_id"`
	UserID     int         `json:"user_id"`
	TotalCents int64       `json:"total_cents"`
	Status     OrderStatus `json:"status"`
	EventType  string      `json:"event_type"` // order_created, order_status_changed
}
