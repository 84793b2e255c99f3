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

type UserHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewUserHandler(db *sql.DB, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		db:     db,
		logger: logger,
	}
}

const userColumns = "id, full_name, username, email, phone, role, status, created_at, updated_at"

func (h *UserHandler) ListUsers(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Username, &u.Email, &u.Phone,
			&u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			h.logger.Error("Failed to scan user", zap.Error(err))
			continue
		}
		users = append(users, u)
	}

	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Self or admin only.
	if c.GetInt(middleware.ContextUserID) != userID && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var u models.User
	err = h.db.QueryRowContext(c.Request.Context(),
		"SELECT "+userColumns+" FROM users WHERE id = $1", userID,
	).Scan(&u.ID, &u.FullName, &u.Username, &u.Email, &u.Phone,
		&u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("Failed to get user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if c.GetInt(middleware.ContextUserID) != userID && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Build update query dynamically
	query := "UPDATE users SET updated_at = NOW()"
	args := []interface{}{}
	argPos := 1

	appendArg := func(column string, value interface{}) {
		query += ", " + column + " = $" + strconv.Itoa(argPos)
		args = append(args, value)
		argPos++
	}

	if req.FullName != nil {
		appendArg("full_name", *req.FullName)
	}
	if req.Username != nil {
		appendArg("username", *req.Username)
	}
	if req.Email != nil {
		appendArg("email", *req.Email)
	}
	if req.Phone != nil {
		appendArg("phone", *req.Phone)
	}
	// Only admins may change role and status.
	if middleware.IsAdmin(c) {
		if req.Role != nil {
			appendArg("role", *req.Role)
		}
		if req.Status != nil {
			appendArg("status", *req.Status)
		}
	}

	query += " WHERE id = $" + strconv.Itoa(argPos) + " RETURNING " + userColumns
	args = append(args, userID)

	var u models.User
	err = h.db.QueryRowContext(c.Request.Context(), query, args...).Scan(
		&u.ID, &u.FullName, &u.Username, &u.Email, &u.Phone,
		&u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			c.JSON(http.StatusConflict, gin.H{"error": "Username or email already taken"})
			return
		}
		h.logger.Error("Failed to update user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("User updated", zap.Int("user_id", u.ID))
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	result, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		h.logger.Error("Failed to delete user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	h.logger.Info("User deleted", zap.Int("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
