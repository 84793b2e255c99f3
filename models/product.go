package models

import (
	"time"

	"github.com/lib/pq"
)

// Product prices are integer minor units (cents) to keep money
// arithmetic exact.
type Product struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	PriceCents     int64          `json:"price_cents"`
	ImageURL       string         `json:"image_url,omitempty"`
	Category       string         `json:"category"`
	PetType        string         `json:"pet_type"`
	ProductType    string         `json:"product_type"`
	Discount       int            `json:"discount"`
	IsNew          bool           `json:"is_new"`
	InStock        bool           `json:"in_stock"`
	Brand          string         `json:"brand,omitempty"`
	Weight         string         `json:"weight,omitempty"`
	Specifications pq.StringArray `json:"specifications"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type CreateProductRequest struct {
	Name           string   `json:"name" binding:"required"`
	Description    string   `json:"description"`
	PriceCents     int64    `json:"price_cents" binding:"required,gt=0"`
	ImageURL       string   `json:"image_url"`
	Category       string   `json:"category" binding:"required"`
	PetType        string   `json:"pet_type" binding:"required"`
	ProductType    string   `json:"product_type" binding:"required"`
	Discount       int      `json:"discount" binding:"gte=0,lte=100"`
	IsNew          bool     `json:"is_new"`
	InStock        bool     `json:"in_stock"`
	Brand          string   `json:"brand"`
	Weight         string   `json:"weight"`
	Specifications []string `json:"specifications"`
}

// UpdateProductRequest replaces the whole catalog entry, matching the
// PUT semantics of the storefront.
type UpdateProductRequest struct {
	Name           string   `json:"name" binding:"required"`
	Description    string   `json:"description"`
	PriceCents     int64    `json:"price_cents" binding:"required,gt=0"`
	ImageURL       string   `json:"image_url"`
	Category       string   `json:"category" binding:"required"`
	PetType        string   `json:"pet_type" binding:"required"`
	ProductType    string   `json:"product_type" binding:"required"`
	Discount       int      `json:"discount" binding:"gte=0,lte=100"`
	IsNew          bool     `json:"is_new"`
	InStock        bool     `json:"in_stock"`
	Brand          string   `json:"brand"`
	Weight         string   `json:"weight"`
	Specifications []string `json:"specifications"`
}
