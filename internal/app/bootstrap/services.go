package bootstrap

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medislot/internal/api/router"
	"github.com/wolfman30/medislot/internal/booking"
	"github.com/wolfman30/medislot/internal/clinic"
	appconfig "github.com/wolfman30/medislot/internal/config"
	"github.com/wolfman30/medislot/internal/events"
	"github.com/wolfman30/medislot/internal/http/handlers"
	"github.com/wolfman30/medislot/internal/observability/metrics"
	"github.com/wolfman30/medislot/internal/triage"
	"github.com/wolfman30/medislot/pkg/logging"
)

// attemptWindow is the fixed window for BOOKING_ATTEMPTS_PER_HOUR.
const attemptWindow = time.Hour

// API bundles everything cmd/api needs to serve and run background work.
type API struct {
	Router     *router.Config
	Transactor *booking.Transactor
	// Deliverer is nil when Redis is not configured.
	Deliverer *events.Deliverer
}

// BuildAPI wires stores, the booking transactor and HTTP handlers on top of
// an open pool. redisClient may be nil.
func BuildAPI(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, reg *prometheus.Registry, logger *logging.Logger) *API {
	if cfg == nil {
		panic("bootstrap: config required")
	}
	if pool == nil {
		panic("bootstrap: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	store := booking.NewPostgresStore(pool, cfg.BookingLockTimeout)
	transactor := booking.NewTransactor(store, logger,
		booking.WithSuggestionLimit(cfg.BookingSuggestionLimit),
		booking.WithMetrics(metrics.NewBookingMetrics(registerer)),
	)
	limiter := booking.NewAttemptLimiter(redisClient, cfg.BookingAttemptsPerHour, attemptWindow, logger)

	sqlDB := OpenSQLDB(pool)
	routerCfg := &router.Config{
		Logger:             logger,
		BookingHandler:     booking.NewHandler(transactor, store, limiter, logger),
		TriageHandler:      triage.NewHandler(nil, logger),
		ClinicHandler:      clinic.NewHandler(clinic.NewRepository(pool), logger),
		ClinicStatsHandler: clinic.NewStatsHandler(clinic.NewStatsRepository(pool), logger),
		ClinicDashboard:    clinic.NewDashboardHandler(clinic.NewDashboardRepository(pool), gatherer, logger),
		AdminStats:         handlers.NewAdminStatsHandler(sqlDB, logger),
		Health:             handlers.NewHealthHandler(sqlDB, logger),
		MetricsHandler:     metricsHandler(reg),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}

	return &API{
		Router:     routerCfg,
		Transactor: transactor,
		Deliverer:  BuildDeliverer(cfg, events.NewOutboxStore(pool), redisClient, logger),
	}
}

// BuildDeliverer returns the outbox deliverer publishing to the configured
// Redis stream, or nil when Redis is disabled.
func BuildDeliverer(cfg *appconfig.Config, store *events.OutboxStore, redisClient *redis.Client, logger *logging.Logger) *events.Deliverer {
	if cfg == nil || store == nil {
		return nil
	}
	publisher := events.NewRedisStreamPublisher(redisClient, cfg.OutboxStream)
	if publisher == nil {
		return nil
	}
	return events.NewDeliverer(store, publisher, logger).WithInterval(cfg.OutboxPollInterval)
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
