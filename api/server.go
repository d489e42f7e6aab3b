/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logging:    One logrus entry per request
  4. RateLimit:  Token bucket per client address (x/time/rate)
  5. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/clients/{clientID}/*  Client-scoped collections
  /api/installments/*        Installment plans
  /api/recurring/*           Recurring payments
  /api/goals/*               Savings goals
  /api/scenarios/*           Demo data
  /api/health                Liveness

SECURITY NOTE:
  No authentication middleware. The client id in the path is trusted.

SEE ALSO:
  - handlers.go: Handler, error mapping
  - middleware.go: logging and rate limiting
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string

	// RateLimitPerMinute <= 0 disables rate limiting.
	RateLimitPerMinute int
	RateLimitBurst     int
}

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))
	if opts.RateLimitPerMinute > 0 {
		r.Use(newRateLimiter(opts.RateLimitPerMinute, opts.RateLimitBurst).Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Client-scoped routes
		r.Route("/clients/{clientID}", func(r chi.Router) {
			r.Route("/distribution", func(r chi.Router) {
				r.Get("/", h.GetDistribution)
				r.Put("/", h.UpdateDistribution)
				r.Delete("/", h.ResetDistribution)
				r.Post("/categories", h.AddCategory)
				r.Patch("/categories/{categoryID}", h.UpdateCategory)
				r.Delete("/categories/{categoryID}", h.RemoveCategory)
				r.Post("/simulate", h.Simulate)
			})

			r.Post("/installments", h.CreatePlan)
			r.Get("/installments", h.ListPlans)

			r.Post("/recurring", h.CreateRecurring)
			r.Get("/recurring", h.ListRecurring)

			r.Post("/goals", h.CreateGoal)
			r.Get("/goals", h.ListGoals)
		})

		// Installment routes
		r.Route("/installments/{planID}", func(r chi.Router) {
			r.Get("/", h.GetPlan)
			r.Patch("/", h.UpdatePlan)
			r.Get("/breakdown", h.GetBreakdown)
			r.Post("/cancel", h.CancelPlan)
			r.Post("/payments/{paymentID}/pay", h.PayInstallment)
			r.Post("/payments/{paymentID}/skip", h.SkipInstallment)
		})

		// Recurring routes
		r.Route("/recurring/{recurringID}", func(r chi.Router) {
			r.Get("/", h.GetRecurring)
			r.Post("/pay", h.PayRecurring)
			r.Patch("/toggle", h.ToggleRecurring)
			r.Get("/occurrences", h.ListOccurrences)
			r.Get("/schedule", h.GetRecurringSchedule)
		})

		// Goal routes
		r.Route("/goals/{goalID}", func(r chi.Router) {
			r.Get("/", h.GetGoal)
			r.Post("/items", h.AddGoalItem)
			r.Delete("/items/{itemID}", h.RemoveGoalItem)
			r.Post("/items/{itemID}/toggle", h.ToggleGoalItem)
			r.Post("/contributions", h.Contribute)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found", Code: "not_found"})
	})

	return r
}
