package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/capsula-erp/capsula/internal/platform/db"
	"github.com/capsula-erp/capsula/internal/shared"
)

// Repository is the product persistence port.
type Repository interface {
	List(ctx context.Context, search string, formulaID int64) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id int64) error
	FormulaExists(ctx context.Context, formulaID int64) (bool, error)
	CountBatches(ctx context.Context, productID int64) (int, error)
}

// ErrNotFound is returned for unknown product ids.
var ErrNotFound = fmt.Errorf("product %w", shared.ErrNotFound)

const columns = `id, name, description, presentation, formula_id, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL product repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) List(ctx context.Context, search string, formulaID int64) ([]Product, error) {
	query := `SELECT ` + columns + ` FROM products WHERE ($1 = '' OR name ILIKE '%' || $1 || '%') AND ($2 = 0 OR formula_id = $2) ORDER BY name, id`
	rows, err := r.db.Query(ctx, query, search, formulaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO products (name, description, presentation, formula_id)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		p.Name, p.Description, string(p.Presentation), p.FormulaID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, db.Classify(err)
	}
	return p, nil
}

func (r *repository) Update(ctx context.Context, p Product) (Product, error) {
	out, err := scan(r.db.QueryRow(ctx, `UPDATE products SET name = $1, description = $2, presentation = $3,
		formula_id = $4, updated_at = NOW() WHERE id = $5 RETURNING `+columns,
		p.Name, p.Description, string(p.Presentation), p.FormulaID, p.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: id %d", ErrNotFound, p.ID)
	}
	if err != nil {
		return Product{}, db.Classify(err)
	}
	return out, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (r *repository) FormulaExists(ctx context.Context, formulaID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM formulas WHERE id = $1)`, formulaID).Scan(&ok)
	return ok, err
}

func (r *repository) CountBatches(ctx context.Context, productID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM production_batches WHERE product_id = $1`, productID).Scan(&n)
	return n, err
}

func scan(row pgx.Row) (Product, error) {
	var p Product
	var presentation string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &presentation, &p.FormulaID, &p.CreatedAt, &p.UpdatedAt)
	p.Presentation = Presentation(presentation)
	return p, err
}
