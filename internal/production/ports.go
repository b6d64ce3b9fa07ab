package production

import (
	"context"

	"github.com/capsula-erp/capsula/internal/formulas"
	"github.com/capsula-erp/capsula/internal/materials"
	"github.com/capsula-erp/capsula/internal/shared"
)

// TxRepository is the transactional view used by batch operations. Stock
// movements reuse the lot and material locks of the materials package.
type TxRepository interface {
	materials.StockTx
	GetBatchForUpdate(ctx context.Context, id int64) (Batch, error)
	InsertBatch(ctx context.Context, b Batch) (Batch, error)
	UpdateBatch(ctx context.Context, b Batch) (Batch, error)
	DeleteBatch(ctx context.Context, id int64) error
	ProductExists(ctx context.Context, id int64) (bool, error)
	InsertConsumption(ctx context.Context, c Consumption) (Consumption, error)
	ListConsumptions(ctx context.Context, batchID int64) ([]Consumption, error)
}

// RepositoryPort is the persistence contract of Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBatch(ctx context.Context, id int64) (Batch, error)
	ListBatches(ctx context.Context, q BatchQuery) ([]Batch, error)
	Consumptions(ctx context.Context, batchID int64) ([]Consumption, error)
	LotsForMaterial(ctx context.Context, materialID int64) ([]materials.Lot, error)
}

// RecipeSource resolves the formula a product is made from.
type RecipeSource interface {
	Recipe(ctx context.Context, productID int64) (formulas.Detail, error)
}

// IdempotencyPort remembers processed request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// AuditPort records batch changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockCache is invalidated after stock moves.
type StockCache interface {
	Bump(ctx context.Context) error
}
