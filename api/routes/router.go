package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casafindr/casafindr-sync/api/controllers"
	"github.com/casafindr/casafindr-sync/api/middleware"
	"github.com/casafindr/casafindr-sync/internal/ingest"
	"github.com/casafindr/casafindr-sync/internal/store"
	"github.com/casafindr/casafindr-sync/internal/token"
	"github.com/casafindr/casafindr-sync/pkg/config"
	"github.com/casafindr/casafindr-sync/pkg/db"
	"github.com/casafindr/casafindr-sync/pkg/logger"
	"github.com/casafindr/casafindr-sync/pkg/redis"
)

// RouterParams carries everything the agent API serves. Redis, Metrics, and
// TokenManager are optional; their routes degrade accordingly.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        redis.Pinger
	Store        store.Service
	Foreground   *ingest.ForegroundHandler
	TokenManager *token.Manager
	Metrics      prometheus.Gatherer
}

// NewRouter builds the loopback HTTP surface of the agent process.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(params.Store, logg))
			r.Get("/unread-count", controllers.UnreadCount(params.Store, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(params.Store, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(params.Store, logg))
			r.Delete("/", controllers.ClearNotifications(params.Store, logg))
		})

		r.Route("/push", func(r chi.Router) {
			r.Post("/deliver", controllers.PushDeliver(params.Foreground, logg))
			r.Post("/tap", controllers.PushTap(params.Foreground, logg))
			r.Route("/token", func(r chi.Router) {
				r.Get("/", controllers.TokenStatus(params.TokenManager, logg))
				r.Post("/rotated", controllers.TokenRotated(params.TokenManager, logg))
			})
		})
	})

	return r
}
