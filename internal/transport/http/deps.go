package http

import (
	"github.com/fern-folio/bookstore-api/internal/application/auth"
	"github.com/fern-folio/bookstore-api/internal/application/cart"
	"github.com/fern-folio/bookstore-api/internal/application/catalog"
	"github.com/fern-folio/bookstore-api/internal/application/order"
	"github.com/fern-folio/bookstore-api/internal/application/registration"
	"github.com/fern-folio/bookstore-api/internal/application/user"
	jwtinfra "github.com/fern-folio/bookstore-api/internal/infrastructure/jwt"
	"github.com/fern-folio/bookstore-api/internal/ratelimit"
)

// Deps holds the services and infrastructure the router wires into handlers.
type Deps struct {
	Auth         auth.Service
	Registration registration.Service
	Users        user.Service
	Catalog      catalog.Service
	Carts        cart.Service
	Orders       order.Service
	JWTProvider  *jwtinfra.Provider
	Limiter      *ratelimit.Limiter
}
