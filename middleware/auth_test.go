package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/H1xl/pet-palace-browse-full/models"
)

func protectedRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append([]gin.HandlerFunc{AuthMiddleware()}, extra...)
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetInt(ContextUserID),
			"role":    c.GetString(ContextRole),
		})
	})
	router.GET("/protected", chain...)
	return router
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token, err := GenerateToken(models.User{
		ID:       7,
		Username: "testuser",
		Role:     models.RoleCustomer,
	})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	router := protectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d (body: %s)", http.StatusOK, w.Code, w.Body.String())
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	router := protectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthMiddleware_MalformedToken(t *testing.T) {
	router := protectedRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestRequireAdmin_CustomerForbidden(t *testing.T) {
	token, err := GenerateToken(models.User{
		ID:       7,
		Username: "testuser",
		Role:     models.RoleCustomer,
	})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	router := protectedRouter(RequireAdmin())
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestRequireAdmin_AdminAllowed(t *testing.T) {
	token, err := GenerateToken(models.User{
		ID:       1,
		Username: "admin",
		Role:     models.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	router := protectedRouter(RequireAdmin())
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}
