package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"estatehub/api/internal/config"
	"estatehub/api/internal/security"
)

const (
	// ContextPrincipalID is where Auth stores the resolved caller id.
	ContextPrincipalID = "principal_id"
	// ContextRole is where Auth stores the resolved caller role.
	ContextRole = "principal_role"
)

// Auth resolves a bearer token to (principal, role) and refuses the request
// otherwise. Every core operation behind it can assume a caller identity.
func Auth(cfg *config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, cfg.Security.JWTAccessSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		if claims.PrincipalID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_principal"})
			return
		}

		c.Set(ContextPrincipalID, claims.PrincipalID)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}
