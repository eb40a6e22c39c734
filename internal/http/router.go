package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/replydesk/server/internal/auth"
	"github.com/replydesk/server/internal/http/handlers"
	"github.com/replydesk/server/internal/middleware"
)

// RouterDeps groups everything NewRouter wires together
type RouterDeps struct {
	Auth       *handlers.AuthHandler
	Views      *handlers.ViewHandler
	Charge     *handlers.ChargeHandler
	Gatekeeper *middleware.Gatekeeper
	Metrics    http.Handler
	DevMode    bool

	// LoginLimiter throttles login attempts per IP
	LoginLimiter *middleware.RateLimiter
	// ChargeLimiter throttles payment submissions per session
	ChargeLimiter *middleware.RateLimiter
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(limit(d.LoginLimiter, middleware.GetIPKey)).Post("/login", d.Auth.HandleLogin)
		r.Post("/logout", d.Auth.HandleLogout)
		if d.DevMode {
			r.Post("/dev_login", d.Auth.HandleDevLogin)
		}
		r.With(d.Gatekeeper.RequireSession).Post("/refresh", d.Auth.HandleRefresh)
	})

	r.With(d.Gatekeeper.RequireSession).Get("/me", d.Auth.HandleMe)

	// Guarded views; the gate runs on every request
	r.With(d.Gatekeeper.Gate(auth.Requirement{RequireAuth: true})).Get("/dashboard", d.Views.HandleDashboard)
	r.With(d.Gatekeeper.Gate(auth.Requirement{RequireAuth: true, RequireAdmin: true})).Get("/admin", d.Views.HandleAdmin)
	r.With(d.Gatekeeper.Gate(auth.Requirement{RequireAuth: true}, middleware.AllowOnboarding())).Get("/onboarding", d.Views.HandleOnboarding)

	r.Route("/payment/flows", func(r chi.Router) {
		r.Use(d.Gatekeeper.RequireSession)

		r.Post("/", d.Charge.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", d.Charge.HandleGet)
			r.Delete("/", d.Charge.HandleDelete)
			r.Post("/edit", d.Charge.HandleEdit)
			r.Post("/dismiss", d.Charge.HandleDismiss)
			r.Post("/reset", d.Charge.HandleReset)

			r.Group(func(r chi.Router) {
				r.Use(limit(d.ChargeLimiter, middleware.GetSessionOrIPKey))
				r.Post("/card", d.Charge.HandleCard)
				r.Post("/challenge", d.Charge.HandleChallenge)
			})
		})
	})

	return r
}

func limit(rl *middleware.RateLimiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimitMiddleware(rl, key)
}
