package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/capsula-erp/capsula/internal/formulas"
	"github.com/capsula-erp/capsula/internal/materials"
	"github.com/capsula-erp/capsula/internal/observability"
	"github.com/capsula-erp/capsula/internal/platform/cache"
	"github.com/capsula-erp/capsula/internal/platform/db"
	"github.com/capsula-erp/capsula/internal/production"
	"github.com/capsula-erp/capsula/internal/products"
	"github.com/capsula-erp/capsula/internal/seed"
	"github.com/capsula-erp/capsula/internal/suppliers"
	"github.com/capsula-erp/capsula/internal/users"
)

// Services holds the domain services shared by the server, the worker and
// the CLI.
type Services struct {
	Suppliers  *suppliers.Service
	Materials  *materials.Service
	Formulas   *formulas.Service
	Products   *products.Service
	Production *production.Service
	Users      *users.Service

	Idempotency *db.IdempotencyStore
}

// NewServices wires every repository and service on top of the pool. The
// overview cache is shared so a production batch invalidates the stock
// overview computed by the materials service.
func NewServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) *Services {
	audit := db.NewAuditWriter(pool)
	idempotency := db.NewIdempotencyStore(pool)
	overview := cache.NewVersioned(redisClient, "materials", cfg.OverviewCacheTTL)

	materialService := materials.NewService(materials.NewRepository(pool), materials.ServiceConfig{
		Audit:   audit,
		Cache:   overview,
		Metrics: metrics,
		Logger:  logger,
	})
	formulaService := formulas.NewService(formulas.NewRepository(pool), audit, logger)
	productService := products.NewService(products.NewRepository(pool), formulaService, audit, logger)

	return &Services{
		Suppliers: suppliers.NewService(suppliers.NewRepository(pool), materialService, audit, logger),
		Materials: materialService,
		Formulas:  formulaService,
		Products:  productService,
		Production: production.NewService(production.NewRepository(pool), production.ServiceConfig{
			Recipes:     productService,
			Idempotency: idempotency,
			Audit:       audit,
			Cache:       overview,
			Metrics:     metrics,
			Logger:      logger,
		}),
		Users:       users.NewService(users.NewRepository(pool), logger),
		Idempotency: idempotency,
	}
}

// Handlers builds the router parameters for the HTTP API.
func (s *Services) Handlers(logger *slog.Logger) RouterParams {
	return RouterParams{
		Logger:            logger,
		SuppliersHandler:  suppliers.NewHandler(logger, s.Suppliers),
		MaterialsHandler:  materials.NewHandler(logger, s.Materials),
		FormulasHandler:   formulas.NewHandler(logger, s.Formulas),
		ProductsHandler:   products.NewHandler(logger, s.Products),
		ProductionHandler: production.NewHandler(logger, s.Production),
		UsersHandler:      users.NewHandler(logger, s.Users),
	}
}

// Seeder returns the development dataset loader driven by these services.
func (s *Services) Seeder(logger *slog.Logger) *seed.Seeder {
	return seed.New(seed.Services{
		Suppliers:  s.Suppliers,
		Materials:  s.Materials,
		Formulas:   s.Formulas,
		Products:   s.Products,
		Production: s.Production,
	}, logger, nil)
}
