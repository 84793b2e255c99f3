package models

import "time"

// CartItem is one (user, product) row. Quantity is always >= 1; a
// removal deletes the row instead of storing zero.
type CartItem struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	ProductID int       `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartLine is the cart view joined with the catalog, as rendered by the
// cart screen.
type CartLine struct {
	CartItemID        int    `json:"cart_item_id"`
	ProductID         int    `json:"product_id"`
	Quantity          int    `json:"quantity"`
	ProductName       string `json:"product_name"`
	ProductPriceCents int64  `json:"product_price_cents"`
	ProductImageURL   string `json:"product_image_url,omitempty"`
}

type AddCartItemRequest struct {
	ProductID int `json:"product_id" binding:"required"`
	Quantity  int `json:"quantity" binding:"required,gt=0"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}
