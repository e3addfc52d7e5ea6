package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/facility-lead-chat/internal/dispatch"
	httpmiddleware "github.com/wolfman30/facility-lead-chat/internal/http/middleware"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/internal/webchat"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

const readinessTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Chat               *webchat.Handler
	Leads              *leads.Handler
	Deliveries         *dispatch.AdminHandler
	MetricsHandler     http.Handler
	ReadinessChecks    map[string]HealthCheck
	AdminAuthSecret    string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json", "application/javascript"))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", health)
	r.Get("/ready", readiness(cfg.ReadinessChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Visitor-facing endpoints share the per-IP limit.
	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		if cfg.Chat != nil {
			public.Post("/api/chat", cfg.Chat.HandleChat)
			public.Route("/chat", func(r chi.Router) {
				r.Get("/ws", cfg.Chat.HandleWebSocket)
				r.Get("/history", cfg.Chat.HandleHistory)
			})
		}
		if cfg.Leads != nil {
			public.Post("/leads/web", cfg.Leads.CreateWebLead)
		}
	})
	if cfg.Chat != nil {
		r.Get("/chat/widget.js", cfg.Chat.HandleWidgetJS)
	}

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.Leads != nil {
			admin.Get("/leads", cfg.Leads.ListLeads)
			admin.Get("/leads/{id}", cfg.Leads.GetLead)
		}
		if cfg.Deliveries != nil {
			admin.Get("/leads/{id}/deliveries", cfg.Deliveries.ListDeliveries)
		}
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readiness(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
