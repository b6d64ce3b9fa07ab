package materials

import (
	"context"

	"github.com/capsula-erp/capsula/internal/shared"
)

// StockTx is the row-locking surface used by every stock mutation. Production
// shares it so batch consumption and direct lot movements lock the same rows.
type StockTx interface {
	GetMaterialForUpdate(ctx context.Context, id int64) (Material, error)
	GetLotForUpdate(ctx context.Context, id int64) (Lot, error)
	// ListLotsForUpdate locks every lot of the material in ascending id order.
	ListLotsForUpdate(ctx context.Context, materialID int64) ([]Lot, error)
	UpdateMaterial(ctx context.Context, m Material) error
	UpdateLot(ctx context.Context, l Lot) error
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	StockTx
	SupplierExists(ctx context.Context, id int64) (bool, error)
	InsertMaterial(ctx context.Context, m Material) (Material, error)
	DeleteMaterial(ctx context.Context, id int64) error
	CountLotsForMaterial(ctx context.Context, materialID int64) (int, error)
	InsertLot(ctx context.Context, l Lot) (Lot, error)
	DeleteLot(ctx context.Context, id int64) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetMaterial(ctx context.Context, id int64) (Material, error)
	ListMaterials(ctx context.Context, q MaterialQuery) ([]Material, error)
	GetLot(ctx context.Context, id int64) (Lot, error)
	ListLots(ctx context.Context, q LotQuery) ([]Lot, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// OverviewCache stores the computed stock overview between mutations.
type OverviewCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

// MovementRecorder counts stock movements for metrics.
type MovementRecorder interface {
	RecordStockMovement(kind string)
}
