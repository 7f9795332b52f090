package router

import (
	"context"
	"net/http"
	"time"

	"vouchers/internal/handler"
	"vouchers/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP surface settings.
type Config struct {
	APIKey         string
	AllowedOrigins []string
}

// New creates a new HTTP router with all routes and middleware configured.
// db may be nil, in which case /health only reports that the process is up.
func New(
	voucherHandler *handler.VoucherHandler,
	db Pinger,
	gatherer prometheus.Gatherer,
	cfg Config,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware order: RequestID -> RealIP -> Recovery -> Logging -> CORS -> APIKeyAuth
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.APIKeyAuth(cfg.APIKey, logger))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.NotFound(handler.NotFound(logger))
	r.MethodNotAllowed(handler.MethodNotAllowed(logger))

	// Health check endpoint (no authentication required)
	r.Get("/health", health(db, logger))

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/vouchers", func(vouchers chi.Router) {
			vouchers.Post("/", voucherHandler.Create)
			vouchers.Post("/generate", voucherHandler.Generate)
			vouchers.Get("/{code}", voucherHandler.GetByCode)
			vouchers.Post("/{code}/check", voucherHandler.Check)
			vouchers.Post("/{code}/redeem", voucherHandler.Redeem)
		})
		api.Get("/users/{userID}/redemptions", voucherHandler.ListUserRedemptions)
	})

	return r
}

func health(db Pinger, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()

			if err := db.Ping(ctx); err != nil {
				logger.Error().Err(err).Msg("health check failed")
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, map[string]string{"status": "unhealthy"})
				return
			}
		}

		render.JSON(w, r, map[string]string{"status": "healthy"})
	}
}
