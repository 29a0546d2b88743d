package middleware

import (
	"net/http"

	"github.com/fern-folio/bookstore-api/internal/domain"
)

// RequireRole admits callers whose role is one of allowed (domain.RoleAdmin,
// domain.RoleStaff, domain.RoleCustomer). It must run after Auth.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				unauthorized(w, domain.ErrUnauthorized)
				return
			}
			if _, ok := set[actor.Role]; !ok {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
