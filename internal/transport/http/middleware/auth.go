package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fern-folio/bookstore-api/internal/domain"
	jwtinfra "github.com/fern-folio/bookstore-api/internal/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "claims"

type tokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Auth returns middleware that validates the Bearer JWT and injects claims into context.
func Auth(provider tokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				unauthorized(w, errMissingBearer)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := provider.Verify(tokenStr)
			if err != nil {
				unauthorized(w, errBadToken)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}

// ActorFromContext returns the authenticated caller as a domain.Actor.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: c.UserID, Role: c.Role}, true
}
