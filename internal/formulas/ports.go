package formulas

import (
	"context"

	"github.com/capsula-erp/capsula/internal/shared"
)

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Formula, error)
	Insert(ctx context.Context, f Formula) (Formula, error)
	Update(ctx context.Context, f Formula) (Formula, error)
	Delete(ctx context.Context, id int64) error
	CountProducts(ctx context.Context, formulaID int64) (int, error)
	LotExists(ctx context.Context, lotID int64) (bool, error)
	InsertIngredient(ctx context.Context, ing Ingredient) (Ingredient, error)
	DeleteIngredient(ctx context.Context, formulaID, ingredientID int64) error
}

// RepositoryPort is the persistence contract of Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Formula, error)
	List(ctx context.Context, search string) ([]Formula, error)
	Ingredients(ctx context.Context, formulaID int64) ([]Ingredient, error)
}

// AuditPort records formula changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}
