package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/H1xl/pet-palace-browse-full/middleware"
	"github.com/H1xl/pet-palace-browse-full/models"
)

// pq error code for foreign key violations.
const pqForeignKeyViolation = "23503"

type CartHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCartHandler(db *sql.DB, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		db:     db,
		logger: logger,
	}
}

// AddItem inserts a cart row, or increments the quantity when the
// product is already in the caller's cart.
func (h *CartHandler) AddItem(c *gin.Context) {
	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt(middleware.ContextUserID)

	var item models.CartItem
	err := h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO cart_items (user_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		 RETURNING id, user_id, product_id, quantity, created_at, updated_at`,
		userID, req.ProductID, req.Quantity,
	).Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product does not exist"})
			return
		}
		h.logger.Error("Failed to add cart item", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Cart item added",
		zap.Int("user_id", userID),
		zap.Int("product_id", item.ProductID),
		zap.Int("quantity", item.Quantity))
	c.JSON(http.StatusOK, item)
}

func (h *CartHandler) ListItems(c *gin.Context) {
	userID := c.GetInt(middleware.ContextUserID)

	rows, err := h.db.QueryContext(c.Request.Context(),
		`SELECT ci.id, ci.product_id, ci.quantity, p.name, p.price_cents, p.image_url
		 FROM cart_items ci
		 JOIN products p ON ci.product_id = p.id
		 WHERE ci.user_id = $1
		 ORDER BY ci.created_at DESC`,
		userID)
	if err != nil {
		h.logger.Error("Failed to fetch cart", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var line models.CartLine
		if err := rows.Scan(&line.CartItemID, &line.ProductID, &line.Quantity,
			&line.ProductName, &line.ProductPriceCents, &line.ProductImageURL); err != nil {
			h.logger.Error("Failed to scan cart line", zap.Error(err))
			continue
		}
		lines = append(lines, line)
	}

	c.JSON(http.StatusOK, lines)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart item ID"})
		return
	}

	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt(middleware.ContextUserID)

	var item models.CartItem
	err = h.db.QueryRowContext(c.Request.Context(),
		`UPDATE cart_items SET quantity = $1, updated_at = NOW()
		 WHERE id = $2 AND user_id = $3
		 RETURNING id, user_id, product_id, quantity, created_at, updated_at`,
		req.Quantity, itemID, userID,
	).Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
			return
		}
		h.logger.Error("Failed to update cart item", zap.Int("cart_item_id", itemID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart item ID"})
		return
	}

	userID := c.GetInt(middleware.ContextUserID)

	result, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		h.logger.Error("Failed to remove cart item", zap.Int("cart_item_id", itemID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart item removed"})
}

// ClearCart removes every cart row for the caller. The checkout flow
// calls this only after a successful order id is returned.
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID := c.GetInt(middleware.ContextUserID)

	if _, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		h.logger.Error("Failed to clear cart", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Cart cleared", zap.Int("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
