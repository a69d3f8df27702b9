package middleware

import (
	"net/http"
	"strings"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/services"

	"github.com/gin-gonic/gin"
)

const identityContextKey = "identity"

// AuthMiddleware verifies the bearer token and stores the derived
// Identity in the request context. All failure modes get the same
// response so callers cannot probe which part of the credential was
// wrong.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authService.VerifyToken(bearerToken(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "AUTH_REQUIRED",
				"message": "invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// AdminOnlyMiddleware rejects non-admin identities. Must run after
// AuthMiddleware.
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok || !identity.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "ACCESS_DENIED",
				"message": "admin role required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// IdentityFromContext returns the Identity stored by AuthMiddleware.
func IdentityFromContext(c *gin.Context) (domain.Identity, bool) {
	val, exists := c.Get(identityContextKey)
	if !exists {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
