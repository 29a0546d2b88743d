package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fern-folio/bookstore-api/internal/domain"
	jwtinfra "github.com/fern-folio/bookstore-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
)

func serveWithRole(role string, allowed ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if role != "" {
		ctx := context.WithValue(req.Context(), claimsKey, &jwtinfra.Claims{UserID: "u1", Role: role})
		req = req.WithContext(ctx)
	}
	rr := httptest.NewRecorder()
	RequireRole(allowed...)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	return rr
}

func TestRequireRole_NoClaimsInContext(t *testing.T) {
	rr := serveWithRole("", domain.RoleAdmin)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rr.Body.String())
}

func TestRequireRole_CustomerOnStaffRoute(t *testing.T) {
	rr := serveWithRole(domain.RoleCustomer, domain.RoleAdmin, domain.RoleStaff)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rr.Body.String())
}

func TestRequireRole_StaffOnStaffRoute(t *testing.T) {
	rr := serveWithRole(domain.RoleStaff, domain.RoleAdmin, domain.RoleStaff)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRole_StaffOnAdminRoute(t *testing.T) {
	rr := serveWithRole(domain.RoleStaff, domain.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
