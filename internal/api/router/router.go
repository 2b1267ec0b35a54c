package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/medislot/internal/booking"
	"github.com/wolfman30/medislot/internal/clinic"
	"github.com/wolfman30/medislot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/medislot/internal/http/middleware"
	"github.com/wolfman30/medislot/internal/triage"
	"github.com/wolfman30/medislot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	BookingHandler     *booking.Handler
	TriageHandler      *triage.Handler
	ClinicHandler      *clinic.Handler
	ClinicStatsHandler *clinic.StatsHandler
	ClinicDashboard    *clinic.DashboardHandler
	AdminStats         *handlers.AdminStatsHandler
	Health             *handlers.HealthHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Per-client request rate; zero RateLimitRPS disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil, cfg.Logger)
	}

	// Probes and scrape endpoint stay outside the rate limiter.
	r.Group(func(public chi.Router) {
		public.Get("/health", health.Health)
		public.Get("/ready", health.Ready)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Group(func(api chi.Router) {
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}

		if cfg.TriageHandler != nil {
			api.Post("/triage/classify", cfg.TriageHandler.Classify)
		}

		if cfg.ClinicHandler != nil {
			api.Mount("/clinics", cfg.ClinicHandler.ClinicRoutes())
			api.Mount("/doctors", cfg.ClinicHandler.DoctorRoutes())
			api.Mount("/slots", cfg.ClinicHandler.SlotRoutes())
		}

		if cfg.BookingHandler != nil {
			api.Get("/doctors/{id}/suggested-slots", cfg.BookingHandler.SuggestedSlots)
			api.Route("/appointments", func(appts chi.Router) {
				appts.Post("/", cfg.BookingHandler.Book)
				appts.Get("/", cfg.BookingHandler.ListByEmail)
				appts.Get("/{id}", cfg.BookingHandler.GetAppointment)
				appts.Patch("/{id}/cancel", cfg.BookingHandler.Cancel)
			})
		}

		api.Route("/admin", func(admin chi.Router) {
			if cfg.ClinicHandler != nil {
				admin.Get("/clinics", cfg.ClinicHandler.ListClinics)
				admin.Post("/clinics", cfg.ClinicHandler.CreateClinic)
				admin.Post("/doctors", cfg.ClinicHandler.CreateDoctor)
				admin.Post("/slots", cfg.ClinicHandler.CreateSlot)
			}
			if cfg.AdminStats != nil {
				admin.Get("/stats", cfg.AdminStats.GetStats)
			}
			if cfg.ClinicStatsHandler != nil {
				admin.Get("/clinics/{id}/stats", cfg.ClinicStatsHandler.GetStats)
			}
			if cfg.ClinicDashboard != nil {
				admin.Get("/clinics/{id}/dashboard", cfg.ClinicDashboard.GetDashboard)
			}
		})
	})

	return r
}
