package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authTestRouter(t *testing.T) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := services.NewAuthService("test-secret", 15*time.Minute, time.Hour)

	router := gin.New()
	router.GET("/protected", AuthMiddleware(auth), func(c *gin.Context) {
		identity, _ := IdentityFromContext(c)
		c.JSON(http.StatusOK, gin.H{"username": identity.Username})
	})
	router.GET("/admin", AuthMiddleware(auth), AdminOnlyMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router, auth
}

func issueToken(t *testing.T, auth services.AuthService, role domain.Role) string {
	t.Helper()
	token, err := auth.GenerateToken(&domain.User{ID: 1, Username: "alice", Role: role})
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, auth := authTestRouter(t)
	token := issueToken(t, auth, domain.RoleUser)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestAuthMiddleware_RejectsBadCredentials(t *testing.T) {
	router, _ := authTestRouter(t)

	headers := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"empty bearer": "Bearer ",
	}
	for name, header := range headers {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "case %s", name)
		assert.Contains(t, w.Body.String(), "AUTH_REQUIRED", "case %s", name)
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	router, auth := authTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, auth, domain.RoleUser))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, auth, domain.RoleAdmin))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
