package production

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/capsula-erp/capsula/internal/materials"
	"github.com/capsula-erp/capsula/internal/platform/db"
)

const batchColumns = `id, product_id, batch_code, size_kg, production_date, created_at, updated_at`

const consumptionQuery = `SELECT c.id, c.batch_id, c.lot_id, c.consumed_mg, c.created_at, l.lot_number, m.id, m.name
	FROM consumed_material_lots c
	JOIN raw_material_lots l ON l.id = c.lot_id
	JOIN raw_materials m ON m.id = l.material_id
	WHERE c.batch_id = $1 ORDER BY c.id`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists batches in PostgreSQL and reads lots through the
// materials repository.
type Repository struct {
	pool  *pgxpool.Pool
	stock *materials.Repository
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, stock: materials.NewRepository(pool)}
}

type txRepo struct {
	materials.StockTx
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{StockTx: materials.NewStockTx(tx), tx: tx})
	})
}

func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return getBatch(ctx, r.pool, id, false)
}

func (r *Repository) ListBatches(ctx context.Context, q BatchQuery) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM production_batches
		WHERE ($1 = 0 OR product_id = $1) AND ($2 = '' OR batch_code ILIKE '%' || $2 || '%')
		ORDER BY production_date DESC, id DESC`, q.ProductID, q.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) Consumptions(ctx context.Context, batchID int64) ([]Consumption, error) {
	return listConsumptions(ctx, r.pool, batchID)
}

func (r *Repository) LotsForMaterial(ctx context.Context, materialID int64) ([]materials.Lot, error) {
	return r.stock.ListLots(ctx, materials.LotQuery{MaterialID: materialID})
}

func (t *txRepo) GetBatchForUpdate(ctx context.Context, id int64) (Batch, error) {
	return getBatch(ctx, t.tx, id, true)
}

func (t *txRepo) InsertBatch(ctx context.Context, b Batch) (Batch, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO production_batches (product_id, batch_code, size_kg, production_date)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		b.ProductID, b.BatchCode, b.SizeKg, b.ProductionDate,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Batch{}, db.Classify(err)
	}
	return b, nil
}

func (t *txRepo) UpdateBatch(ctx context.Context, b Batch) (Batch, error) {
	out, err := scanBatch(t.tx.QueryRow(ctx, `UPDATE production_batches SET batch_code = $1, size_kg = $2,
		production_date = $3, updated_at = NOW() WHERE id = $4 RETURNING `+batchColumns,
		b.BatchCode, b.SizeKg, b.ProductionDate, b.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, fmt.Errorf("%w: id %d", ErrBatchNotFound, b.ID)
	}
	if err != nil {
		return Batch{}, db.Classify(err)
	}
	return out, nil
}

func (t *txRepo) DeleteBatch(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM production_batches WHERE id = $1`, id); err != nil {
		return db.Classify(err)
	}
	return nil
}

func (t *txRepo) ProductExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (t *txRepo) InsertConsumption(ctx context.Context, c Consumption) (Consumption, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO consumed_material_lots (batch_id, lot_id, consumed_mg)
		VALUES ($1, $2, $3) RETURNING id, created_at`,
		c.BatchID, c.LotID, c.ConsumedMg,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Consumption{}, db.Classify(err)
	}
	return c, nil
}

func (t *txRepo) ListConsumptions(ctx context.Context, batchID int64) ([]Consumption, error) {
	return listConsumptions(ctx, t.tx, batchID)
}

func getBatch(ctx context.Context, q querier, id int64, lock bool) (Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM production_batches WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	b, err := scanBatch(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, fmt.Errorf("%w: id %d", ErrBatchNotFound, id)
	}
	return b, err
}

func listConsumptions(ctx context.Context, q querier, batchID int64) ([]Consumption, error) {
	rows, err := q.Query(ctx, consumptionQuery, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Consumption
	for rows.Next() {
		var c Consumption
		if err := rows.Scan(&c.ID, &c.BatchID, &c.LotID, &c.ConsumedMg, &c.CreatedAt,
			&c.LotNumber, &c.MaterialID, &c.MaterialName); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.ProductID, &b.BatchCode, &b.SizeKg, &b.ProductionDate, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
