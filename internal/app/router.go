package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/capsula-erp/capsula/internal/formulas"
	"github.com/capsula-erp/capsula/internal/materials"
	"github.com/capsula-erp/capsula/internal/observability"
	"github.com/capsula-erp/capsula/internal/platform/httpx"
	"github.com/capsula-erp/capsula/internal/production"
	"github.com/capsula-erp/capsula/internal/products"
	"github.com/capsula-erp/capsula/internal/suppliers"
	"github.com/capsula-erp/capsula/internal/users"
	"github.com/capsula-erp/capsula/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SuppliersHandler  *suppliers.Handler
	MaterialsHandler  *materials.Handler
	FormulasHandler   *formulas.Handler
	ProductsHandler   *products.Handler
	ProductionHandler *production.Handler
	UsersHandler      *users.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with capsula defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if params.SuppliersHandler != nil {
			r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		}
		if params.MaterialsHandler != nil {
			r.Route("/materials", params.MaterialsHandler.MountMaterialRoutes)
			r.Route("/lots", params.MaterialsHandler.MountLotRoutes)
		}
		if params.FormulasHandler != nil {
			r.Route("/formulas", params.FormulasHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.ProductionHandler != nil {
			r.Route("/production", params.ProductionHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
