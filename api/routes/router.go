package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bukari-app/bukari-backend/api/controllers"
	"github.com/bukari-app/bukari-backend/api/middleware"
	"github.com/bukari-app/bukari-backend/internal/payments"
	"github.com/bukari-app/bukari-backend/internal/scanner"
	"github.com/bukari-app/bukari-backend/internal/tickets"
	"github.com/bukari-app/bukari-backend/pkg/config"
	"github.com/bukari-app/bukari-backend/pkg/db"
	"github.com/bukari-app/bukari-backend/pkg/logger"
	"github.com/bukari-app/bukari-backend/pkg/metrics"
	"github.com/bukari-app/bukari-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Tickets  tickets.Service
	Payments payments.Service
	Scanner  scanner.Service
	Metrics  *metrics.HTTPMetrics
	Registry *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var idemStore redis.IdempotencyStore
	var redisPinger redis.Pinger
	if deps.Redis != nil {
		idemStore = deps.Redis
		redisPinger = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(),
	)

	scanPolicy := middleware.NewRateLimitPolicy(
		"scanner",
		cfg.Scanner.RateLimitWindow,
		cfg.Scanner.RateLimitPerIP,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Webhooks are authenticated by signature, not bearer token, and must
	// see the raw body.
	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/webhook/paystack", controllers.PaystackWebhook(deps.Payments, logg))
		r.Post("/webhook/stripe", controllers.StripeWebhook(deps.Payments, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Get("/verify/{reference}", controllers.VerifyPayment(deps.Payments, logg))
	})

	r.Route("/api/v1/tickets", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.With(middleware.Idempotency(idemStore, logg)).Post("/purchase", controllers.PurchaseTickets(deps.Tickets, logg))
		r.Get("/mine", controllers.ListMyTickets(deps.Tickets, logg))
	})

	r.Route("/api/v1/events", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/{eventId}/tickets", controllers.ListEventTickets(deps.Tickets, logg))
		r.With(middleware.Idempotency(idemStore, logg)).Post("/{eventId}/claim", controllers.ClaimFreeTicket(deps.Tickets, logg))
	})

	// verify-access is the handshake; every other scanning route requires
	// the access code on each request.
	r.Route("/api/v1/scanner", func(r chi.Router) {
		r.Use(middleware.RateLimit(scanPolicy, deps.Redis, logg))
		r.Post("/verify-access", controllers.VerifyScannerAccess(deps.Scanner, logg))
		r.Group(func(r chi.Router) {
			r.Use(middleware.ScannerAccess(deps.Scanner, logg))
			r.Post("/validate", controllers.ValidateScan(deps.Scanner, logg))
			r.Post("/validate-manual", controllers.ValidateManualScan(deps.Scanner, logg))
			r.With(middleware.Idempotency(idemStore, logg)).Post("/mark-used", controllers.MarkTicketUsed(deps.Scanner, logg))
			r.Get("/events/{eventId}/stats", controllers.ScannerEventStats(deps.Scanner, logg))
		})
	})

	return r
}
