package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"healthbyte/api/internal/config"
	"healthbyte/api/internal/models"
	"healthbyte/api/internal/security"
)

const identityKey = "identity"

// Auth verifies the bearer token and stores the resolved identity on the
// request. Handlers pass it explicitly into the pipeline; nothing reads
// it from ambient state.
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

		c.Set(identityKey, models.Identity{
			UserID:      claims.UserID,
			DisplayName: claims.DisplayName,
		})

		c.Next()
	}
}

// IdentityFrom returns the identity resolved by Auth.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}
