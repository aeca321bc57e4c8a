package middleware

import (
	"context"
	"net/http"
	"strings"

	"food-order/models"
	"food-order/policy"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Authenticator turns a bearer token into a principal
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (policy.Principal, error)
}

// AuthRequired validates the bearer token and stores the caller's principal in the context
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required (Bearer <token>)"})
			return
		}
		p, err := auth.Authenticate(c.Request.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RoleRequired enforces that caller has one of the allowed roles
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if !policy.AuthorizeRole(p, roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Access denied. Required role(s): " + rolesString(roles),
			})
			return
		}
		c.Next()
	}
}

func rolesString(roles []models.UserRole) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// CurrentPrincipal returns the principal set by AuthRequired
func CurrentPrincipal(c *gin.Context) (policy.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return policy.Principal{}, false
	}
	p, ok := v.(policy.Principal)
	return p, ok
}
