package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/myclarix/lumina/internal/appointments"
	"github.com/myclarix/lumina/internal/channels/whatsapp"
	"github.com/myclarix/lumina/internal/http/handlers"
	httpmiddleware "github.com/myclarix/lumina/internal/http/middleware"
	"github.com/myclarix/lumina/internal/telemetry"
	"github.com/myclarix/lumina/internal/webchat"
	"github.com/myclarix/lumina/pkg/logging"
)

const serviceName = "lumina-backend"

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Env                string
	Appointments       *appointments.Handler
	Chat               *webchat.Handler
	GA4                *telemetry.Handler
	WhatsApp           *whatsapp.WebhookHandler
	AdminAppointments  *handlers.AdminAppointmentsHandler
	AdminJWTSecret     string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Per-client token bucket on /api; zero disables it.
	RateLimitRPS   float64
	RateLimitBurst int
	// Stop ends background work started by middleware (rate limiter eviction).
	Stop <-chan struct{}
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.ClientContext)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.NotFound(notFound)

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/", banner)
		public.Get("/health", health(cfg.Env))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WhatsApp != nil {
			public.Route("/webhook/whatsapp", func(r chi.Router) {
				r.Get("/", cfg.WhatsApp.HandleVerification)
				r.Post("/", cfg.WhatsApp.HandleInbound)
			})
		}
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Stop))

		if cfg.Appointments != nil {
			api.Mount("/appointments", cfg.Appointments.Routes())
		}
		if cfg.Chat != nil {
			api.Route("/chat", func(r chi.Router) {
				r.Post("/", cfg.Chat.HandleMessage)
				r.Get("/history", cfg.Chat.HandleHistory)
				r.Get("/ws", cfg.Chat.HandleWebSocket)
			})
		}
		if cfg.GA4 != nil {
			api.Post("/metrics/ga4", cfg.GA4.TrackGA4)
			api.Get("/ga-test", cfg.GA4.TestEvent)
		}
	})

	// Admin routes (protected by JWT)
	if cfg.AdminJWTSecret != "" && cfg.AdminAppointments != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/appointments/summary", cfg.AdminAppointments.GetSummary)
			admin.Delete("/appointments", cfg.AdminAppointments.ClearAppointments)
		})
	}

	return r
}

func banner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Lumina backend (MyClarix) está corriendo correctamente\n" +
		"OK endpoints: /health  /api/chat  /api/appointments  /api/metrics/ga4  /webhook/whatsapp\n"))
}

func health(env string) http.HandlerFunc {
	if env == "" {
		env = "development"
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": serviceName,
			"env":     env,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found", "path": r.URL.RequestURI()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
