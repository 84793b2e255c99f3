package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/H1xl/pet-palace-browse-full/middleware"
	"github.com/H1xl/pet-palace-browse-full/models"
)

// pq error code for unique constraint violations.
const pqUniqueViolation = "23505"

type AuthHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAuthHandler(db *sql.DB, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		logger: logger,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var user models.User
	err = h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO users (full_name, username, email, phone, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, full_name, username, email, phone, role, status, created_at, updated_at`,
		req.FullName, req.Username, req.Email, req.Phone, string(hashedPassword),
	).Scan(&user.ID, &user.FullName, &user.Username, &user.Email, &user.Phone,
		&user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			c.JSON(http.StatusConflict, gin.H{"error": "Username or email already taken"})
			return
		}
		h.logger.Error("Failed to create user",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("User registered",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.String("username", user.Username))
	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := h.db.QueryRowContext(c.Request.Context(),
		`SELECT id, full_name, username, email, phone, password_hash, role, status, created_at, updated_at
		 FROM users WHERE email = $1`,
		req.Email,
	).Scan(&user.ID, &user.FullName, &user.Username, &user.Email, &user.Phone,
		&user.PasswordHash, &user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.logger.Error("Database error",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if user.Status == models.UserStatusBlocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is blocked"})
		return
	}

	tokenString, err := middleware.GenerateToken(user)
	if err != nil {
		h.logger.Error("Failed to generate token",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("User logged in",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.String("username", user.Username))
	c.JSON(http.StatusOK, models.LoginResponse{
		Token: tokenString,
		User:  user,
	})
}
