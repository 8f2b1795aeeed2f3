package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dentaflow/clinic-platform/internal/http/handlers"
	httpmiddleware "github.com/dentaflow/clinic-platform/internal/http/middleware"
	"github.com/dentaflow/clinic-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Availability       *handlers.AvailabilityHandler
	Appointments       *handlers.AppointmentsHandler
	SchedulingStats    *handlers.SchedulingStatsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.Availability != nil {
			api.Get("/availability", cfg.Availability.GetAvailability)
		}
		if cfg.Appointments != nil {
			api.Route("/appointments", func(appts chi.Router) {
				appts.Post("/", cfg.Appointments.CreateAppointment)
				appts.Post("/auto-book", cfg.Appointments.AutoBook)
				appts.Get("/check-conflict", cfg.Appointments.CheckConflict)
			})
		}
	})

	r.Route("/admin", func(admin chi.Router) {
		if cfg.SchedulingStats != nil {
			admin.Get("/scheduling/stats", cfg.SchedulingStats.GetStats)
		}
	})

	return r
}
