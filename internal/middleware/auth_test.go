package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"healthbyte/api/internal/config"
	"healthbyte/api/internal/middleware"
	"healthbyte/api/internal/models"
	"healthbyte/api/internal/security"
)

// signToken mimics what the external auth service issues.
func signToken(t *testing.T, secret, userID, displayName string) string {
	t.Helper()
	now := time.Now()
	claims := security.AccessClaims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			Subject:   userID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authRouter(secret string) (*gin.Engine, *models.Identity) {
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{}
	cfg.Security.JWTAccessSecret = secret

	var seen models.Identity
	router := gin.New()
	router.GET("/probe", middleware.Auth(cfg), func(c *gin.Context) {
		identity, ok := middleware.IdentityFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		seen = identity
		c.Status(http.StatusOK)
	})
	return router, &seen
}

func TestAuthResolvesIdentity(t *testing.T) {
	router, seen := authRouter("test-secret")

	token := signToken(t, "test-secret", "user-1", "Sam")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "user-1", seen.UserID)
	require.Equal(t, "Sam", seen.DisplayName)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	router, _ := authRouter("test-secret")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/probe", nil))
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAuthRejectsForgedToken(t *testing.T) {
	router, _ := authRouter("test-secret")

	token := signToken(t, "attacker-secret", "user-1", "Sam")

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
