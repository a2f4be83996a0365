package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/campaign-dashboard/internal/auth"
	"github.com/ignite/campaign-dashboard/internal/metrics"
	"github.com/ignite/campaign-dashboard/internal/ratelimit"
	"github.com/ignite/campaign-dashboard/internal/screening"
)

// RouterConfig holds what the router needs besides the handlers.
type RouterConfig struct {
	AllowedOrigins []string
	Verifier       auth.Verifier
	Limiter        ratelimit.Limiter
	Metrics        *metrics.Metrics
	Health         *HealthChecker
}

// SetupRoutes configures all API routes. Every /api request passes, in
// order, bearer auth, input screening, the global per-IP limit and, for the
// send endpoints, a per-user limit.
func SetupRoutes(h *Handlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cfg.Metrics.Middleware)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and metrics (no auth required)
	if cfg.Health != nil {
		r.Get("/health", cfg.Health.HandleHealth)
		r.Get("/health/ready", cfg.Health.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"healthy"}`))
		})
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter()
	}
	limit := func(rule ratelimit.Rule, key ratelimit.KeyFunc) func(http.Handler) http.Handler {
		return ratelimit.Middleware(limiter, rule, key, cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Verifier))
		r.Use(screening.Middleware)
		r.Use(limit(ratelimit.Global, ratelimit.ByClientIP))

		r.With(limit(ratelimit.SendEmail, ratelimit.ByUser)).Post("/email/send", h.SendEmail)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Post("/", h.CreateContact)
			r.Post("/import", h.ImportContacts)
			r.Post("/resolve", h.ResolveContacts)
			r.Get("/{id}", h.GetContact)
			r.Put("/{id}", h.UpdateContact)
			r.Delete("/{id}", h.DeleteContact)
			r.Post("/{id}/tags", h.AddContactTags)
			r.Delete("/{id}/tags", h.RemoveContactTags)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", h.ListTags)
			r.Post("/", h.CreateTag)
			r.Put("/{id}", h.UpdateTag)
			r.Delete("/{id}", h.DeleteTag)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/{id}", h.GetTemplate)
			r.Put("/{id}", h.UpdateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
			r.Post("/{id}/preview", h.PreviewTemplate)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.With(limit(ratelimit.SendCampaign, ratelimit.ByUser)).Post("/send", h.SendCampaign)
			r.Get("/{id}", h.GetCampaign)
			r.Put("/{id}", h.UpdateCampaign)
			r.Delete("/{id}", h.DeleteCampaign)
			r.Get("/{id}/jobs", h.ListCampaignJobs)
			r.Post("/{id}/unschedule", h.UnscheduleCampaign)
		})

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", h.ListSuppressions)
			r.Post("/", h.AddSuppression)
			r.Get("/stats", h.SuppressionStats)
			r.Delete("/{email}", h.RemoveSuppression)
		})

		r.Get("/logs", h.ListLogs)
		r.Get("/stats", h.GetStats)
	})

	return r
}
