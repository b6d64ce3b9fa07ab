package formulas

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/capsula-erp/capsula/internal/platform/db"
	"github.com/capsula-erp/capsula/internal/shared"
)

const formulaColumns = `id, name, pharmaceutical_form, standard_units, standard_weight_kg, created_at, updated_at`

// Repository persists formulas in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *Repository) Get(ctx context.Context, id int64) (Formula, error) {
	return getFormula(r.pool.QueryRow(ctx, `SELECT `+formulaColumns+` FROM formulas WHERE id = $1`, id), id)
}

func (r *Repository) List(ctx context.Context, search string) ([]Formula, error) {
	query := `SELECT ` + formulaColumns + ` FROM formulas`
	var args []any
	if search != "" {
		query += ` WHERE name ILIKE $1 OR pharmaceutical_form ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Formula
	for rows.Next() {
		f, err := scanFormula(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repository) Ingredients(ctx context.Context, formulaID int64) ([]Ingredient, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.formula_id, i.lot_id, i.quantity_mg, i.created_at,
		l.lot_number, m.id, m.name
		FROM ingredients i
		JOIN raw_material_lots l ON l.id = i.lot_id
		JOIN raw_materials m ON m.id = l.material_id
		WHERE i.formula_id = $1 ORDER BY i.id`, formulaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ingredient
	for rows.Next() {
		var ing Ingredient
		if err := rows.Scan(&ing.ID, &ing.FormulaID, &ing.LotID, &ing.QuantityMg, &ing.CreatedAt,
			&ing.LotNumber, &ing.MaterialID, &ing.MaterialName); err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Formula, error) {
	return getFormula(t.tx.QueryRow(ctx, `SELECT `+formulaColumns+` FROM formulas WHERE id = $1 FOR UPDATE`, id), id)
}

func (t *txRepo) Insert(ctx context.Context, f Formula) (Formula, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO formulas (name, pharmaceutical_form, standard_units, standard_weight_kg)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		f.Name, string(f.PharmaceuticalForm), f.StandardUnits, f.StandardWeightKg,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return Formula{}, db.Classify(err)
	}
	return f, nil
}

func (t *txRepo) Update(ctx context.Context, f Formula) (Formula, error) {
	row := t.tx.QueryRow(ctx, `UPDATE formulas SET name = $1, pharmaceutical_form = $2, standard_units = $3,
		standard_weight_kg = $4, updated_at = NOW() WHERE id = $5 RETURNING `+formulaColumns,
		f.Name, string(f.PharmaceuticalForm), f.StandardUnits, f.StandardWeightKg, f.ID)
	out, err := getFormula(row, f.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Formula{}, db.Classify(err)
	}
	return out, err
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM formulas WHERE id = $1`, id); err != nil {
		return db.Classify(err)
	}
	return nil
}

func (t *txRepo) CountProducts(ctx context.Context, formulaID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE formula_id = $1`, formulaID).Scan(&n)
	return n, err
}

func (t *txRepo) LotExists(ctx context.Context, lotID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM raw_material_lots WHERE id = $1)`, lotID).Scan(&ok)
	return ok, err
}

func (t *txRepo) InsertIngredient(ctx context.Context, ing Ingredient) (Ingredient, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO ingredients (formula_id, lot_id, quantity_mg)
		VALUES ($1, $2, $3) RETURNING id, created_at`,
		ing.FormulaID, ing.LotID, ing.QuantityMg,
	).Scan(&ing.ID, &ing.CreatedAt)
	if err != nil {
		return Ingredient{}, db.Classify(err)
	}
	return ing, nil
}

func (t *txRepo) DeleteIngredient(ctx context.Context, formulaID, ingredientID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM ingredients WHERE id = $1 AND formula_id = $2`, ingredientID, formulaID)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrIngredientNotFound, ingredientID)
	}
	return nil
}

func getFormula(row pgx.Row, id int64) (Formula, error) {
	f, err := scanFormula(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Formula{}, fmt.Errorf("%w: id %d", ErrFormulaNotFound, id)
	}
	return f, err
}

func scanFormula(row pgx.Row) (Formula, error) {
	var f Formula
	var form string
	err := row.Scan(&f.ID, &f.Name, &form, &f.StandardUnits, &f.StandardWeightKg, &f.CreatedAt, &f.UpdatedAt)
	f.PharmaceuticalForm = PharmaceuticalForm(form)
	return f, err
}
