package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Params collects what the router needs. Idempotency and Metrics are optional.
type Params struct {
	Config       *config.Config
	Logger       *logger.Logger
	Orders       orders.Service
	Idempotency  pkgredis.IdempotencyStore
	Metrics      prometheus.Gatherer
	Dependencies []controllers.Dependency
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Dependencies...))
	})

	if p.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/orders", func(r chi.Router) {
		r.With(middleware.Idempotency(p.Idempotency, cfg.Orders.IdempotencyTTL, logg)).
			Post("/createOrder", controllers.CreateOrder(p.Orders, logg))
	})

	return r
}
