package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/capsula-erp/capsula/internal/platform/db"
	"github.com/capsula-erp/capsula/internal/shared"
)

// Repository is the persistence port of the supplier service.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, supplier Supplier) (Supplier, error)
	Delete(ctx context.Context, id int64) error
	References(ctx context.Context, id int64) (References, error)
}

const columns = `id, tax_id, legal_name, trade_name, email, phone, address, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL supplier repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	filters = filters.Normalize()
	where := ` WHERE 1=1`
	var args []any
	if term := shared.FoldSearch(filters.Search); term != "" {
		args = append(args, "%"+term+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (search_key LIKE $` + n + ` OR tax_id LIKE $` + n + `)`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM suppliers` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	args = append(args, filters.PerPage, filters.Offset())
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	s, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (tax_id, legal_name, trade_name, search_key, email, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`,
		s.TaxID, s.LegalName, s.TradeName, searchKey(s), s.Email, s.Phone, s.Address,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Supplier{}, db.Classify(err)
	}
	return s, nil
}

func (r *repository) Update(ctx context.Context, id int64, s Supplier) (Supplier, error) {
	err := r.db.QueryRow(ctx, `UPDATE suppliers SET tax_id = $1, legal_name = $2, trade_name = $3, search_key = $4,
		email = $5, phone = $6, address = $7, updated_at = NOW() WHERE id = $8
		RETURNING `+columns,
		s.TaxID, s.LegalName, s.TradeName, searchKey(s), s.Email, s.Phone, s.Address, id,
	).Scan(&s.ID, &s.TaxID, &s.LegalName, &s.TradeName, &s.Email, &s.Phone, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Supplier{}, db.Classify(err)
	}
	return s, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) References(ctx context.Context, id int64) (References, error) {
	var refs References
	err := r.db.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM raw_materials WHERE supplier_id = $1),
		(SELECT COUNT(*) FROM raw_material_lots WHERE supplier_id = $1)`, id,
	).Scan(&refs.Materials, &refs.Lots)
	return refs, err
}

func scan(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.TaxID, &s.LegalName, &s.TradeName, &s.Email, &s.Phone, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func searchKey(s Supplier) string {
	return shared.FoldSearch(s.LegalName + " " + s.TradeName)
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "tax_id":
		return "tax_id " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "legal_name " + dir
	}
}
