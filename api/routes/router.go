package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/traverseglobe/quotation-backend/api/controllers"
	"github.com/traverseglobe/quotation-backend/api/middleware"
	"github.com/traverseglobe/quotation-backend/internal/quotation"
	"github.com/traverseglobe/quotation-backend/pkg/config"
	"github.com/traverseglobe/quotation-backend/pkg/logger"
	"github.com/traverseglobe/quotation-backend/pkg/redis"
)

// NewRouter wires every HTTP surface. redisClient may be nil, which disables
// PDF rate limiting; checks lists the dependencies probed by /health/ready.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	sessions *quotation.Manager,
	catalogService controllers.CatalogService,
	redisClient *redis.Client,
	checks map[string]controllers.Pinger,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	pdfLimit := func(next http.Handler) http.Handler { return next }
	if redisClient != nil {
		pdfPolicy := middleware.NewRateLimitPolicy("pdf", cfg.RateLimit.PDFWindow, cfg.RateLimit.PDFLimit)
		pdfLimit = middleware.SessionRateLimit(pdfPolicy, redisClient, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/", controllers.CatalogGet(catalogService, logg))
		r.Post("/refresh", controllers.CatalogRefresh(catalogService, logg))
	})

	r.Route("/api/v1/quotations", func(r chi.Router) {
		r.Post("/", controllers.QuotationCreate(sessions, logg))

		r.Route("/{"+middleware.SessionParam+"}", func(r chi.Router) {
			r.Use(middleware.Session(sessions, logg))

			r.Get("/", controllers.QuotationGet(logg))
			r.Delete("/", controllers.QuotationDelete(sessions, logg))
			r.Patch("/details", controllers.QuotationUpdateDetails(logg))

			r.Post("/activities", controllers.QuotationAddActivity(catalogService, logg))
			r.Put("/activities/{index}", controllers.QuotationUpdateActivity(catalogService, logg))
			r.Delete("/activities/{index}", controllers.QuotationRemoveActivity(logg))

			r.Post("/days", controllers.QuotationAddDay(logg))
			r.Patch("/days/{index}", controllers.QuotationUpdateDay(logg))
			r.Delete("/days/{index}", controllers.QuotationRemoveDay(logg))

			r.Put("/flights", controllers.QuotationFlights(logg))
			r.Put("/visa", controllers.QuotationVisa(logg))
			r.Put("/gst", controllers.QuotationGST(logg))

			r.Get("/status", controllers.QuotationStatus(logg))
			r.Get("/export", controllers.QuotationExport(logg))
			r.Post("/import", controllers.QuotationImport(logg))
			r.Get("/share", controllers.QuotationShare(cfg.Company, logg))
			r.With(pdfLimit).Get("/pdf", controllers.QuotationPDF(cfg.Company, logg))
		})
	})

	return r
}
