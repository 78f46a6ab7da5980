// Package auth verifies session credentials and carries the resulting
// identity through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"hotelbook/internal/domain"
)

// Claims is the session token payload issued by the login flow.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Verify returns the user id of a valid token. Every failure wraps
// domain.ErrUnauthenticated; the cause is for server-side logs only.
func (v *Verifier) Verify(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("missing token: %w", domain.ErrUnauthenticated)
	}
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("token has no userId: %w", domain.ErrUnauthenticated)
	}
	return claims.UserID, nil
}

type ctxKey struct{}

// WithIdentity stamps ctx with the authenticated user id.
func WithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// Identity returns the authenticated user id, or "" when the request was not
// authenticated.
func Identity(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
