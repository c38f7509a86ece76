package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/commercekit/catalog-api/internal/api"
	"github.com/commercekit/catalog-api/internal/api/auth"
	"github.com/commercekit/catalog-api/internal/api/category"
	"github.com/commercekit/catalog-api/internal/api/product"
	"github.com/commercekit/catalog-api/internal/api/user"
)

// Config carries the handlers and middleware the router wires together.
// Server-wide middleware (request ID, logger, recoverer) is applied before
// mounting this router in main.go.
type Config struct {
	AuthHandler     *auth.HandlerImpl
	UserHandler     *user.HandlerImpl
	CategoryHandler *category.HandlerImpl
	ProductHandler  *product.HandlerImpl

	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the main application router.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong")) //nolint:errcheck
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", apiOverview)

		// Public auth routes
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/token/refresh", cfg.AuthHandler.RefreshSession)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Post("/auth/change-password", cfg.AuthHandler.ChangePassword)
			r.Get("/auth/user-info", cfg.AuthHandler.UserInfo)
			r.Get("/auth/profile", cfg.UserHandler.Profile)
			r.Put("/auth/profile", cfg.UserHandler.UpdateProfile)

			// Identity management; per-object authorization happens in the
			// service layer (owner-or-admin, never-self rules).
			r.Route("/users", func(r chi.Router) {
				r.Get("/", cfg.UserHandler.List)
				r.With(auth.RequireRole(api.RoleAdmin)).Post("/", cfg.UserHandler.Create)
				r.With(auth.RequireRole(api.RoleAdmin)).Get("/stats", cfg.UserHandler.Stats)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.UserHandler.Get)
					r.Put("/", cfg.UserHandler.Update)
					r.Patch("/", cfg.UserHandler.Update)
					r.With(auth.RequireRole(api.RoleAdmin)).Delete("/", cfg.UserHandler.Delete)
					r.With(auth.RequireRole(api.RoleAdmin)).Post("/toggle-status", cfg.UserHandler.ToggleStatus)
				})
			})

			// Category management is staff-only, reads included.
			r.Route("/categories", func(r chi.Router) {
				r.Use(auth.RequireRole(api.RoleAdmin, api.RoleModerator))
				r.Get("/", cfg.CategoryHandler.List)
				r.Post("/", cfg.CategoryHandler.Create)
				r.Get("/stats", cfg.CategoryHandler.Stats)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.CategoryHandler.Get)
					r.Put("/", cfg.CategoryHandler.Update)
					r.Patch("/", cfg.CategoryHandler.Update)
					r.Delete("/", cfg.CategoryHandler.Delete)
					r.Post("/toggle-status", cfg.CategoryHandler.ToggleStatus)
				})
			})

			// Product reads are open to any authenticated caller.
			r.Route("/products", func(r chi.Router) {
				r.Get("/", cfg.ProductHandler.List)
				r.Get("/stats", cfg.ProductHandler.Stats)
				r.With(auth.RequireRole(api.RoleAdmin, api.RoleModerator)).Post("/", cfg.ProductHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.ProductHandler.Get)
					staff := r.With(auth.RequireRole(api.RoleAdmin, api.RoleModerator))
					staff.Put("/", cfg.ProductHandler.Update)
					staff.Patch("/", cfg.ProductHandler.Update)
					staff.Delete("/", cfg.ProductHandler.Delete)
					staff.Post("/toggle-status", cfg.ProductHandler.ToggleStatus)
				})
			})
		})
	})

	return r
}


// apiOverview answers GET /api/v1 with a map of the available endpoints.
func apiOverview(w http.ResponseWriter, r *http.Request) {
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]any{
		"name":    "catalog-api",
		"version": "v1",
		"endpoints": map[string]string{
			"auth":       "/api/v1/auth/{register,login,token/refresh,logout,change-password,profile,user-info}",
			"users":      "/api/v1/users",
			"categories": "/api/v1/categories",
			"products":   "/api/v1/products",
			"health":     "/ping",
		},
	})
}
