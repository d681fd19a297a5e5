package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"waypost/internal/service"
)

// RouterDeps bundles everything NewRouter needs
type RouterDeps struct {
	AuthService     *service.AuthService
	LocationService *service.LocationService
	EmailService    *service.EmailService
	MetricsHandler  http.Handler

	// LoginLimiter throttles the credential-bearing endpoints. Optional;
	// nil means a default limiter is created.
	LoginLimiter *IPRateLimiter
}

// NewRouter builds the full route tree.
//
// Middleware order: Logging → Recover globally; the credential endpoints
// (login, register, password reset) additionally pass the per-IP rate
// limiter; everything under /api except those passes the auth gate.
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(Logging)
	r.Use(Recover)

	gate := NewAuthGate(deps.AuthService)
	authHandler := NewAuthHandler(deps.AuthService, deps.EmailService)
	locationHandler := NewLocationHandler(deps.LocationService)
	adminHandler := NewAdminHandler(deps.AuthService)

	limiter := deps.LoginLimiter
	if limiter == nil {
		// 10 attempts per minute per IP with a small burst
		limiter = NewIPRateLimiter(rate.Limit(10.0/60.0), 10)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		// Unauthenticated, rate limited
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/password-reset/request", authHandler.RequestPasswordReset)
			r.Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)
		})

		// Unauthenticated: the token itself is the credential
		r.Post("/verify-email/confirm", authHandler.ConfirmVerification)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(gate.RequireAuth)
			r.Post("/logout", authHandler.Logout)
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Get("/me", authHandler.Me)
			r.Get("/sessions", authHandler.ListSessions)
			r.Post("/change-password", authHandler.ChangePassword)
			r.Post("/verify-email/request", authHandler.ResendVerification)
		})
	})

	r.Route("/api/locations", func(r chi.Router) {
		r.Use(gate.RequireAuth)
		r.Post("/", locationHandler.Create)
		r.Get("/", locationHandler.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", locationHandler.Get)
			r.Put("/", locationHandler.Update)
			r.Delete("/", locationHandler.Delete)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(gate.RequireAuth)
		r.Use(gate.RequireAdmin)
		r.Get("/users", adminHandler.ListUsers)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Put("/active", adminHandler.SetUserActive)
			r.Delete("/", adminHandler.DeleteUser)
		})
		r.Get("/sessions", adminHandler.ListSessions)
	})

	return r
}
