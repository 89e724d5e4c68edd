/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Client address from proxy headers
  3. RequestLogger: zerolog line per request
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the back-office frontend
  6. RateLimiter:   Token bucket per client address

ROUTE GROUPS:
  /healthz              Liveness, no auth
  /public/invoices/*    Public download gate, no auth
  /api/*                Bearer token required

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Bearer token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Auth           *Authenticator
	Limiter        *RateLimiter // nil disables rate limiting
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware)
	}

	r.Get("/healthz", h.Health)
	r.Get("/public/invoices/{id}", h.PublicInvoice)

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)

		// Ownership chain
		r.Post("/clients", h.CreateClient)
		r.Post("/sites", h.CreateSite)

		// Service and period routes
		r.Route("/services", func(r chi.Router) {
			r.Post("/", h.CreateService)
			r.Get("/{id}", h.GetService)
			r.Get("/{id}/calendar", h.GetCalendar)
			r.Get("/{id}/commission", h.GetCommission)
			r.Post("/{id}/periods", h.CreatePeriod)
			r.Post("/{id}/periods/confirm", h.ConfirmPeriod)
			r.Post("/{id}/periods/{periodID}/adjust", h.AdjustPeriod)
		})
		r.Route("/periods", func(r chi.Router) {
			r.Patch("/{id}", h.UpdatePeriod)
			r.Delete("/{id}", h.DeletePeriod)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Patch("/{id}", h.UpdateInvoice)
			r.Post("/{id}/pdf", h.MarkPDFGenerated)
			r.Get("/{id}/balance", h.GetBalance)
			r.Post("/{id}/lines", h.AddLine)
			r.Post("/{id}/payments", h.RecordPayment)
		})
		r.Route("/invoice-lines", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateLine)
			r.Delete("/{id}", h.DeleteLine)
		})
		r.Delete("/payments/{id}", h.DeletePayment)

		// Accounting routes
		r.Post("/legal-entities", h.CreateLegalEntity)
		r.Post("/cost-items", h.CreateCostItem)
		r.Post("/incomes", h.CreateIncome)
		r.Post("/expenses/bulk-tax", h.BulkTax)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
