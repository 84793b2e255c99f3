package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/H1xl/pet-palace-browse-full/kafka"
	"github.com/H1xl/pet-palace-browse-full/middleware"
	"github.com/H1xl/pet-palace-browse-full/models"
)

type OrderHandler struct {
	db       *sql.DB
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewOrderHandler(db *sql.DB, producer sarama.SyncProducer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		db:       db,
		producer: producer,
		logger:   logger,
	}
}

const orderColumns = "id, user_id, total_cents, shipping_street, shipping_city, shipping_postal_code, status, created_at, updated_at"

func scanOrder(row interface{ Scan(...interface{}) error }, o *models.Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.TotalCents, &o.ShippingStreet, &o.ShippingCity,
		&o.ShippingPostalCode, &o.Status, &o.CreatedAt, &o.UpdatedAt)
}

// CreateOrder inserts the order header and all its lines in one
// transaction. Any failure rolls the whole order back; a header without
// lines is never observable. Line prices are stored exactly as
// submitted, capturing the price at purchase time.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("petpalace-api").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt(middleware.ContextUserID)
	span.SetAttributes(
		attribute.Int("user_id", userID),
		attribute.Int("items.count", len(req.Items)),
	)

	// Blocked accounts may hold valid tokens; re-check status here.
	var status models.UserStatus
	err := h.db.QueryRowContext(ctx,
		"SELECT status FROM users WHERE id = $1", userID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to check user status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if status == models.UserStatusBlocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is blocked"})
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	orderID, insertErr := h.insertOrder(ctx, tx, userID, &req)
	if insertErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			h.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		span.RecordError(insertErr)

		var badProduct *unknownProductError
		if errors.As(insertErr, &badProduct) {
			c.JSON(http.StatusBadRequest, gin.H{"error": badProduct.Error()})
			return
		}
		h.logger.Error("Failed to create order",
			zap.String("trace_id", middleware.GetTraceID(ctx)),
			zap.Int("user_id", userID),
			zap.Error(insertErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to commit order", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("order.id", orderID))
	middleware.RecordOrderPlaced()

	// Best-effort event; the order is already committed.
	if h.producer != nil {
		event := models.OrderEvent{
			OrderID:    orderID,
			UserID:     userID,
			TotalCents: req.TotalCents,
			Status:     models.OrderStatusProcessing,
			EventType:  "order_created",
		}
		if err := kafka.PublishOrderEvent(ctx, h.producer, kafka.OrderEventsTopic, event, h.logger); err != nil {
			h.logger.Error("Failed to publish order_created event", zap.Error(err))
		}
	}

	h.logger.Info("Order created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("order_id", orderID),
		zap.Int("user_id", userID))
	c.JSON(http.StatusCreated, gin.H{"order_id": orderID})
}

// unknownProductError marks a line referencing a product id that does
// not exist in the catalog. It maps to a 400, not a 500.
type unknownProductError struct {
	ProductID int
}

func (e *unknownProductError) Error() string {
	return fmt.Sprintf("product %d does not exist", e.ProductID)
}

// insertOrder writes the header first (lines need its id), then every
// line. Product existence is verified inside the same transaction so
// referential validity holds at order time.
func (h *OrderHandler) insertOrder(ctx context.Context, tx *sql.Tx, userID int, req *models.CreateOrderRequest) (int, error) {
	var orderID int
	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, total_cents, shipping_street, shipping_city, shipping_postal_code, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		userID, req.TotalCents, req.ShippingStreet, req.ShippingCity, req.ShippingPostalCode,
		models.OrderStatusProcessing,
	).Scan(&orderID)
	if err != nil {
		return 0, fmt.Errorf("could not insert order header: %w", err)
	}

	for _, item := range req.Items {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)", item.ProductID,
		).Scan(&exists); err != nil {
			return 0, fmt.Errorf("could not verify product %d: %w", item.ProductID, err)
		}
		if !exists {
			return 0, &unknownProductError{ProductID: item.ProductID}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price_cents)
			 VALUES ($1, $2, $3, $4)`,
			orderID, item.ProductID, item.Quantity, item.PriceCents,
		); err != nil {
			return 0, fmt.Errorf("could not insert order item (product %d): %w", item.ProductID, err)
		}
	}

	return orderID, nil
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		h.logger.Error("Failed to scan orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID := c.GetInt(middleware.ContextUserID)

	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		h.logger.Error("Failed to scan orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

func collectOrders(rows *sql.Rows) ([]models.Order, error) {
	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetOrder returns the header plus its lines, gated to the owner or an
// admin.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("petpalace-api").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}
	span.SetAttributes(attribute.Int("order.id", orderID))

	var order models.Order
	err = scanOrder(h.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", orderID), &order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if order.UserID != c.GetInt(middleware.ContextUserID) && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, quantity, price_cents FROM order_items WHERE order_id = $1",
		orderID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get order items", zap.Int("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceCents); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan order item", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		items = append(items, item)
	}
	order.Items = items

	c.JSON(http.StatusOK, order)
}

// UpdateStatus accepts any status in the allowed set. Delivered and
// cancelled orders are terminal and reject further changes.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	ctx, span := otel.Tracer("petpalace-api").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.IsValidOrderStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order status"})
		return
	}

	// The terminal-state guard lives in the UPDATE so two concurrent
	// requests cannot both get past it.
	var order models.Order
	err = scanOrder(h.db.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status NOT IN ('delivered', 'cancelled')
		 RETURNING `+orderColumns,
		req.Status, orderID), &order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Zero rows means the order is missing or already terminal;
			// look at the stored status to tell the two apart.
			var current models.OrderStatus
			err = h.db.QueryRowContext(ctx,
				"SELECT status FROM orders WHERE id = $1", orderID).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
				return
			}
			if err == nil && models.IsTerminalOrderStatus(current) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Order is already %s", current)})
				return
			}
		}
		span.RecordError(err)
		h.logger.Error("Failed to update order status", zap.Int("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if h.producer != nil {
		event := models.OrderEvent{
			OrderID:    order.ID,
			UserID:     order.UserID,
			TotalCents: order.TotalCents,
			Status:     order.Status,
			EventType:  "order_status_changed",
		}
		if err := kafka.PublishOrderEvent(ctx, h.producer, kafka.OrderEventsTopic, event, h.logger); err != nil {
			h.logger.Error("Failed to publish order_status_changed event", zap.Error(err))
		}
	}

	h.logger.Info("Order status updated",
		zap.Int("order_id", order.ID),
		zap.String("status", string(order.Status)))
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	// order_items rows go with the order via FK cascade.
	result, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM orders WHERE id = $1", orderID)
	if err != nil {
		h.logger.Error("Failed to delete order", zap.Int("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	h.logger.Info("Order deleted", zap.Int("order_id", orderID))
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
}
