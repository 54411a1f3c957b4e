package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stagecrew/rentline-backend/api/controllers"
	"github.com/stagecrew/rentline-backend/api/middleware"
	"github.com/stagecrew/rentline-backend/internal/catalog"
	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/internal/scans"
	"github.com/stagecrew/rentline-backend/pkg/config"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

// Services collects everything the HTTP surface exposes.
type Services struct {
	Engine   engine.Service
	Catalog  catalog.Service
	Scans    scans.Service
	Projects controllers.ProjectStore
	Pingers  map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svcs Services) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Actor(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, svcs.Pingers))
	})

	gatherer := svcs.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", controllers.ReservationCreate(svcs.Engine, logg))
			r.Post("/{reservationID}/release", controllers.ReservationRelease(svcs.Engine, logg))
			r.Post("/{reservationID}/confirm", controllers.ReservationConfirm(svcs.Engine, logg))
			r.Post("/{reservationID}/consume", controllers.ReservationConsume(svcs.Engine, logg))
		})

		r.Post("/availability/check", controllers.AvailabilityCheck(svcs.Engine, logg))

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", controllers.ProjectCreate(svcs.Projects, logg))
			r.Get("/{projectID}", controllers.ProjectGet(svcs.Projects, logg))
			r.Post("/{projectID}/move", controllers.ProjectMove(svcs.Engine, logg))
		})

		r.Post("/scans", controllers.ScanApply(svcs.Scans, logg))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ItemList(svcs.Catalog, logg))
			r.Post("/", controllers.ItemCreate(svcs.Catalog, logg))
			r.Get("/{itemID}", controllers.ItemGet(svcs.Catalog, logg))
			r.Patch("/{itemID}", controllers.ItemUpdate(svcs.Catalog, logg))
		})

		r.Route("/bundles", func(r chi.Router) {
			r.Get("/", controllers.BundleList(svcs.Catalog, logg))
			r.Post("/", controllers.BundleCreate(svcs.Catalog, logg))
			r.Get("/{bundleID}", controllers.BundleGet(svcs.Catalog, logg))
			r.Get("/{bundleID}/expand", controllers.BundleExpand(svcs.Catalog, logg))
		})
	})

	return r
}
