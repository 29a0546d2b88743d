package http

import (
	"net/http"

	"github.com/fern-folio/bookstore-api/internal/config"
	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/fern-folio/bookstore-api/internal/transport/http/handler"
	appmiddleware "github.com/fern-folio/bookstore-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	// Every request, preflights included, counts against the caller's window.
	if deps.Limiter != nil {
		r.Use(appmiddleware.RateLimit(deps.Limiter, cfg.RateLimit.TrustProxyHeaders))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	staff := appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleStaff)
	admin := appmiddleware.RequireRole(domain.RoleAdmin)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(deps.Auth)
	regH := handler.NewRegistrationHandler(deps.Registration)
	userH := handler.NewUserHandler(deps.Users)
	bookH := handler.NewBookHandler(deps.Catalog)
	cartH := handler.NewCartHandler(deps.Carts)
	orderH := handler.NewOrderHandler(deps.Orders)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/sessions/login", sessionH.Login)
		r.Post("/users/register", regH.Register)
		r.Get("/users/verify/{token}", regH.Verify)
		r.Post("/users/verify/resend", regH.Resend)
		r.Get("/books", bookH.List)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/users/{id}", userH.Get)
			r.Patch("/users/{id}", userH.Update)
			r.Delete("/users/{id}", userH.Delete)
			r.With(admin).Get("/users", userH.List)

			r.Get("/genres", bookH.ListGenres)
			r.Get("/genres/{id}", bookH.GetGenre)

			r.Get("/carts/me", cartH.Mine)
			r.Delete("/carts/me", cartH.Clear)
			r.Post("/carts/me/checkout", cartH.Checkout)
			r.Post("/carts/items", cartH.AddItem)
			r.Patch("/carts/items/{itemID}", cartH.UpdateItem)
			r.Delete("/carts/items/{itemID}", cartH.RemoveItem)
			r.Get("/carts/{id}", cartH.Get)

			r.Post("/orders", orderH.Create)
			r.Get("/orders/mine", orderH.Mine)
			r.Get("/orders/{id}", orderH.Get)

			// Staff and admin routes
			r.Group(func(r chi.Router) {
				r.Use(staff)

				r.Get("/books/{id}", bookH.Get)
				r.Post("/books", bookH.Create)
				r.Put("/books/{id}", bookH.Update)
				r.Delete("/books/{id}", bookH.Delete)
				r.Post("/books/import", bookH.Import)
				r.Post("/books/isbn/{isbn}", bookH.CreateFromISBN)

				r.Post("/genres", bookH.CreateGenre)
				r.Delete("/genres/{id}", bookH.DeleteGenre)

				r.Get("/orders", orderH.List)
				r.Patch("/orders/{id}/status", orderH.UpdateStatus)
				r.Delete("/orders/{id}", orderH.Delete)
			})
		})
	})

	return r
}
