package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

// Resolver turns a bearer credential into the caller's user id.
type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// ResolveIdentity verifies an HS256 token, optionally prefixed with "Bearer ", and returns
// its subject. The sub claim wins over the legacy userId and id claims.
func (r *Resolver) ResolveIdentity(credential string) (string, error) {
	raw := strings.TrimSpace(credential)
	if raw == "" {
		return "", apperr.Unauthenticated("missing credential")
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.Unauthenticated("credential expired")
		}
		return "", apperr.Unauthenticated("invalid credential")
	}
	if !token.Valid {
		return "", apperr.Unauthenticated("invalid credential")
	}

	for _, key := range []string{"sub", "userId", "id"} {
		if userID := claimString(claims[key]); userID != "" {
			return userID, nil
		}
	}
	return "", apperr.Unauthenticated("credential carries no subject")
}

// IssueToken signs a token for userID that expires after ttl.
func (r *Resolver) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func claimString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// numeric ids decode as float64
		return fmt.Sprintf("%.0f", val)
	default:
		return ""
	}
}
