package security_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"healthbyte/api/internal/security"
)

// signToken mimics what the external auth service issues.
func signToken(t *testing.T, secret, userID, displayName string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := security.AccessClaims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   userID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParseAccessToken(t *testing.T) {
	token := signToken(t, "test-secret", "user-1", "Sam", time.Minute)

	claims, err := security.ParseAccessToken(token, "test-secret")
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "Sam", claims.DisplayName)
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
	token := signToken(t, "test-secret", "user-1", "Sam", time.Minute)

	_, err := security.ParseAccessToken(token, "other-secret")
	require.Error(t, err)
}

func TestParseAccessTokenExpired(t *testing.T) {
	token := signToken(t, "test-secret", "user-1", "Sam", -time.Minute)

	_, err := security.ParseAccessToken(token, "test-secret")
	require.Error(t, err)
}

func TestParseAccessTokenWrongAlgorithm(t *testing.T) {
	// Unsigned tokens must never verify, whatever the header claims.
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, security.AccessClaims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = security.ParseAccessToken(token, "test-secret")
	require.Error(t, err)
}
