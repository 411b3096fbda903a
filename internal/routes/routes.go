package routes

import (
	"github.com/aka0kuro/hostberry-sub000/internal/gateway"
	"github.com/aka0kuro/hostberry-sub000/internal/handlers"
	"github.com/aka0kuro/hostberry-sub000/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	accessHandler *handlers.AccessHandler,
	gw *gateway.Gateway,
) {
	// Coarse outer limit on the credential endpoint, in front of the
	// lockout logic in the security layer
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)

	// Protected routes - bearer token required
	router.Group(func(r chi.Router) {
		r.Use(gw.Authenticate)

		r.Get("/auth/session", authHandler.Session)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(gw.RequireAdmin)
			r.Put("/access/blacklist", accessHandler.UpdateBlacklist)
			r.Put("/access/whitelist", accessHandler.UpdateWhitelist)
		})
	})
}
