// Package tokentest mints access tokens shaped like the ones the DeepSight API issues.
package tokentest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var signingKey = []byte("deepsight-test-signing-key")

// Mint returns an HS256 access token expiring at exp.
func Mint(t testing.TB, exp time.Time) string {
	t.Helper()
	return sign(t, jwtlib.MapClaims{
		"token_type": "access",
		"exp":        exp.Unix(),
		"iat":        exp.Add(-5 * time.Minute).Unix(),
		"jti":        uuid.New().String(),
		"user_id":    1,
	})
}

// MintWithoutExpiry returns a structurally valid token with no exp claim.
func MintWithoutExpiry(t testing.TB) string {
	t.Helper()
	return sign(t, jwtlib.MapClaims{
		"token_type": "access",
		"jti":        uuid.New().String(),
		"user_id":    1,
	})
}

func sign(t testing.TB, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(signingKey)
	require.NoError(t, err)
	return signed
}
