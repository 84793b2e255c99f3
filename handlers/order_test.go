package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/H1xl/pet-palace-browse-full/middleware"
	"github.com/H1xl/pet-palace-browse-full/models"
)

// identityFor simulates AuthMiddleware for tests.
func identityFor(userID int, role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextRole, string(role))
		c.Next()
	}
}

func setupOrderTest(t *testing.T, userID int, role models.UserRole) (*OrderHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	// Producer stays nil: event publishing is best-effort and skipped.
	handler := NewOrderHandler(db, nil, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/orders", identityFor(userID, role), handler.CreateOrder)
	router.GET("/orders/my", identityFor(userID, role), handler.ListMyOrders)
	router.GET("/orders/:id", identityFor(userID, role), handler.GetOrder)
	router.PUT("/orders/:id/status", identityFor(userID, role), handler.UpdateStatus)

	return handler, mock, router
}

func placeOrder(t *testing.T, router *gin.Engine, req models.CreateOrderRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
	httpReq.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httpReq)
	return w
}

func validOrderRequest() models.CreateOrderRequest {
	return models.CreateOrderRequest{
		TotalCents:         2200,
		ShippingStreet:     "Main St 1",
		ShippingCity:       "Metropolis",
		ShippingPostalCode: "00000",
		Items: []models.CreateOrderItemRequest{
			{ProductID: 1, Quantity: 2, PriceCents: 500},
			{ProductID: 2, Quantity: 1, PriceCents: 1200},
		},
	}
}

func expectActiveUser(mock sqlmock.Sqlmock, userID int) {
	mock.ExpectQuery("SELECT status FROM users WHERE id = \\$1").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("active"))
}

func TestOrderHandler_CreateOrder_Success(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleCustomer)
	defer handler.db.Close()

	expectActiveUser(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(1, int64(2200), "Main St 1", "Metropolis", "00000", models.OrderStatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(42, 1, 2, int64(500)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(42, 2, 1, int64(1200)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	w := placeOrder(t, router, validOrderRequest())

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d (body: %s)", http.StatusCreated, w.Code, w.Body.String())
	}

	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["order_id"] != 42 {
		t.Errorf("Expected order_id 42, got %d", resp["order_id"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_CreateOrder_UnknownProductRollsBack(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleCustomer)
	defer handler.db.Close()

	expectActiveUser(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(1, int64(2200), "Main St 1", "Metropolis", "00000", models.OrderStatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(42, 1, 2, int64(500)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	// Second product does not exist, the whole order must roll back.
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	w := placeOrder(t, router, validOrderRequest())

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_CreateOrder_LineInsertFailureRollsBack(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleCustomer)
	defer handler.db.Close()

	expectActiveUser(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(1, int64(2200), "Main St 1", "Metropolis", "00000", models.OrderStatusProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(42, 1, 2, int64(500)).
		WillReturnError(errors.New("storage fault"))
	mock.ExpectRollback()

	w := placeOrder(t, router, validOrderRequest())

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_CreateOrder_EmptyItems(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleCustomer)
	defer handler.db.Close()

	req := validOrderRequest()
	req.Items = nil

	w := placeOrder(t, router, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	// Validation fails before any write.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}

func TestOrderHandler_CreateOrder_MissingShippingField(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleCustomer)
	defer handler.db.Close()

	req := validOrderRequest()
	req.ShippingCity = ""

	w := placeOrder(t, router, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}

func TestOrderHandler_CreateOrder_BlockedUser(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleCustomer)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT status FROM users WHERE id = \\$1").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("blocked"))

	w := placeOrder(t, router, validOrderRequest())

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func orderRow(id, userID int, status models.OrderStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "total_cents", "shipping_street",
		"shipping_city", "shipping_postal_code", "status", "created_at", "updated_at"}).
		AddRow(id, userID, 2200, "Main St 1", "Metropolis", "00000", status, time.Now(), time.Now())
}

func TestOrderHandler_GetOrder_OwnerSeesItems(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleCustomer)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1").
		WithArgs(42).
		WillReturnRows(orderRow(42, 1, models.OrderStatusProcessing))
	mock.ExpectQuery("SELECT id, order_id, product_id, quantity, price_cents FROM order_items").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price_cents"}).
			AddRow(1, 42, 1, 2, 500).
			AddRow(2, 42, 2, 1, 1200))

	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var order models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(order.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(order.Items))
	}
	if order.Items[0].PriceCents != 500 || order.Items[1].PriceCents != 1200 {
		t.Errorf("Stored line prices were not preserved: %+v", order.Items)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_GetOrder_NotOwnerForbidden(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 7, models.RoleCustomer)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1").
		WithArgs(42).
		WillReturnRows(orderRow(42, 1, models.OrderStatusProcessing))

	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_GetOrder_NotFound(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleCustomer)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1").
		WithArgs(999).
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/orders/999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_UpdateStatus_Success(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleAdmin)
	defer handler.db.Close()

	mock.ExpectQuery("UPDATE orders SET status").
		WithArgs(models.OrderStatusShipped, 42).
		WillReturnRows(orderRow(42, 1, models.OrderStatusShipped))

	body, _ := json.Marshal(models.UpdateOrderStatusRequest{Status: models.OrderStatusShipped})
	req := httptest.NewRequest(http.MethodPut, "/orders/42/status", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d (body: %s)", http.StatusOK, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_UpdateStatus_UnknownValue(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleAdmin)
	defer handler.db.Close()

	body, _ := json.Marshal(models.UpdateOrderStatusRequest{Status: "teleported"})
	req := httptest.NewRequest(http.MethodPut, "/orders/42/status", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	// Rejected before any query; the stored status is untouched.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}

func TestOrderHandler_UpdateStatus_TerminalStateRejected(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleAdmin)
	defer handler.db.Close()

	// The guarded UPDATE skips terminal orders; the follow-up read
	// tells terminal apart from missing.
	mock.ExpectQuery("UPDATE orders SET status").
		WithArgs(models.OrderStatusProcessing, 42).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT status FROM orders WHERE id = \\$1").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("delivered"))

	body, _ := json.Marshal(models.UpdateOrderStatusRequest{Status: models.OrderStatusProcessing})
	req := httptest.NewRequest(http.MethodPut, "/orders/42/status", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_UpdateStatus_NotFound(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleAdmin)
	defer handler.db.Close()

	mock.ExpectQuery("UPDATE orders SET status").
		WithArgs(models.OrderStatusShipped, 999).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT status FROM orders WHERE id = \\$1").
		WithArgs(999).
		WillReturnError(sql.ErrNoRows)

	body, _ := json.Marshal(models.UpdateOrderStatusRequest{Status: models.OrderStatusShipped})
	req := httptest.NewRequest(http.MethodPut, "/orders/999/status", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_ListMyOrders(t *testing.T) {
	handler, mock, router := setupOrderTest(t, 1, models.RoleCustomer)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE user_id = \\$1").
		WithArgs(1).
		WillReturnRows(orderRow(42, 1, models.OrderStatusProcessing))

	req := httptest.NewRequest(http.MethodGet, "/orders/my", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var orders []models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &orders); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("Expected 1 order, got %d", len(orders))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
