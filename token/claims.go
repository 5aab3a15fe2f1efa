package token

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/deepsight-client/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims holds the parts of an access token the client reads.
// Signatures are not verified client side.
type Claims struct {
	Expiry    time.Time
	IssuedAt  time.Time
	UserID    string
	TokenType string
	JTI       string
}

// ValidateFormat checks that raw looks like a JWT (3 non-empty dot-separated parts).
func ValidateFormat(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: token is empty", errors.ErrInvalidToken)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: must be a valid JWT", errors.ErrInvalidToken)
	}
	for i, part := range parts {
		if len(part) == 0 {
			return fmt.Errorf("%w: part %d is empty", errors.ErrInvalidToken, i+1)
		}
	}
	return nil
}

// Parse decodes the claims of raw without verifying its signature.
func Parse(raw string) (*Claims, error) {
	if err := ValidateFormat(raw); err != nil {
		return nil, err
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: error extracting claims", errors.ErrInvalidToken)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if exp == nil {
		return nil, errors.ErrMissingExpiry
	}

	c := &Claims{Expiry: exp.Time}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.TokenType, _ = claims["token_type"].(string)
	c.JTI, _ = claims["jti"].(string)

	switch id := claims["user_id"].(type) {
	case string:
		c.UserID = id
	case float64:
		c.UserID = strconv.FormatInt(int64(id), 10)
	}

	return c, nil
}

// ParseExpiry returns the instant encoded in the token's exp claim.
func ParseExpiry(raw string) (time.Time, error) {
	c, err := Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return c.Expiry, nil
}

// CheckExpiry returns nil when raw carries an exp claim strictly after now,
// ErrTokenExpired when it does not, or the error that prevented reading exp.
func CheckExpiry(raw string, now time.Time) error {
	exp, err := ParseExpiry(raw)
	if err != nil {
		return err
	}
	if !exp.After(now) {
		return fmt.Errorf("%w at %s", errors.ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}
	return nil
}

// IsLive reports whether raw carries an exp claim strictly after now.
func IsLive(raw string, now time.Time) bool {
	return CheckExpiry(raw, now) == nil
}
