package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/H1xl/pet-palace-browse-full/cache"
	"github.com/H1xl/pet-palace-browse-full/models"
)

const productCacheTTL = 5 * time.Minute

type ProductHandler struct {
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewProductHandler(db *sql.DB, redisClient *redis.Client, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}
}

const productColumns = "id, name, description, price_cents, image_url, category, pet_type, product_type, discount, is_new, in_stock, brand, weight, specifications, created_at, updated_at"

func scanProduct(row interface{ Scan(...interface{}) error }, p *models.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.ImageURL,
		&p.Category, &p.PetType, &p.ProductType, &p.Discount, &p.IsNew, &p.InStock,
		&p.Brand, &p.Weight, &p.Specifications, &p.CreatedAt, &p.UpdatedAt)
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer("petpalace-api").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	rows, err := h.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan product", zap.Error(err))
			continue
		}
		products = append(products, p)
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("petpalace-api").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))
	cacheKey := strconv.Itoa(id)

	// Try to get from cache first
	if h.redisClient != nil {
		cachedData, err := cache.GetProduct(ctx, h.redisClient, cacheKey)
		if err == nil {
			var product models.Product
			if err := json.Unmarshal(cachedData, &product); err == nil {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				c.JSON(http.StatusOK, product)
				return
			}
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	var product models.Product
	err = scanProduct(h.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id), &product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if h.redisClient != nil {
		if err := cache.SetProduct(ctx, h.redisClient, cacheKey, product, productCacheTTL); err != nil {
			h.logger.Warn("Failed to cache product", zap.Int("product_id", id), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("petpalace-api").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var product models.Product
	err := scanProduct(h.db.QueryRowContext(ctx,
		`INSERT INTO products (name, description, price_cents, image_url, category, pet_type,
			product_type, discount, is_new, in_stock, brand, weight, specifications)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+productColumns,
		req.Name, req.Description, req.PriceCents, req.ImageURL, req.Category, req.PetType,
		req.ProductType, req.Discount, req.IsNew, req.InStock, req.Brand, req.Weight,
		pq.Array(req.Specifications)), &product)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("product.id", product.ID))
	h.logger.Info("Product created", zap.Int("product_id", product.ID))
	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("petpalace-api").Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var product models.Product
	err = scanProduct(h.db.QueryRowContext(ctx,
		`UPDATE products SET name = $1, description = $2, price_cents = $3, image_url = $4,
			category = $5, pet_type = $6, product_type = $7, discount = $8, is_new = $9,
			in_stock = $10, brand = $11, weight = $12, specifications = $13, updated_at = NOW()
		 WHERE id = $14
		 RETURNING `+productColumns,
		req.Name, req.Description, req.PriceCents, req.ImageURL, req.Category, req.PetType,
		req.ProductType, req.Discount, req.IsNew, req.InStock, req.Brand, req.Weight,
		pq.Array(req.Specifications), id), &product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// Invalidate cache
	if h.redisClient != nil {
		if err := cache.DeleteProduct(ctx, h.redisClient, strconv.Itoa(id)); err != nil {
			h.logger.Warn("Failed to invalidate product cache", zap.Int("product_id", id), zap.Error(err))
		}
	}

	h.logger.Info("Product updated", zap.Int("product_id", id))
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("petpalace-api").Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	result, err := h.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to delete product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	if h.redisClient != nil {
		if err := cache.DeleteProduct(ctx, h.redisClient, strconv.Itoa(id)); err != nil {
			h.logger.Warn("Failed to invalidate product cache", zap.Int("product_id", id), zap.Error(err))
		}
	}

	h.logger.Info("Product deleted", zap.Int("product_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
