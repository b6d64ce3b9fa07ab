package materials

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/capsula-erp/capsula/internal/platform/db"
	"github.com/capsula-erp/capsula/internal/shared"
)

const materialColumns = `m.id, m.code, m.name, m.description, m.category, m.supplier_id, m.available_qty, m.unit,
	m.unit_price, m.storage_condition, m.location, m.manufacture_date, m.expiry_date,
	m.days_valid_after_opening, m.opened, m.opened_at, m.quarantined, m.quarantine_reason,
	m.received_at, m.created_at, m.updated_at`

const lotColumns = `l.id, l.material_id, l.supplier_id, l.lot_number, l.manufacture_date, l.expiry_date,
	l.invoice_ref, l.received_mg, l.available_mg, l.received_at, l.quality_approved, l.approved_at,
	l.approved_by, l.notes, l.storage_location, l.storage_conditions, l.opened, l.opened_at,
	l.traceability_code, l.created_at, l.updated_at, m.days_valid_after_opening`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists materials and lots in PostgreSQL.
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

// NewStockTx exposes the locking stock operations on an open transaction.
func NewStockTx(tx pgx.Tx) StockTx {
	return &txRepo{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *Repository) GetMaterial(ctx context.Context, id int64) (Material, error) {
	return getMaterial(ctx, r.pool, id, false)
}

func (r *Repository) ListMaterials(ctx context.Context, q MaterialQuery) ([]Material, error) {
	query := `SELECT ` + materialColumns + ` FROM raw_materials m WHERE 1=1`
	var args []any
	if term := shared.FoldSearch(q.Search); term != "" {
		args = append(args, "%"+term+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (m.search_key LIKE $` + n + ` OR m.code::text LIKE $` + n + `)`
	}
	if q.SupplierID > 0 {
		args = append(args, q.SupplierID)
		query += ` AND m.supplier_id = $` + strconv.Itoa(len(args))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		query += ` AND m.category = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY ` + materialSortOrder(q.SortBy, q.SortDir)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) GetLot(ctx context.Context, id int64) (Lot, error) {
	return getLot(ctx, r.pool, id, false)
}

func (r *Repository) ListLots(ctx context.Context, q LotQuery) ([]Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM raw_material_lots l JOIN raw_materials m ON m.id = l.material_id WHERE 1=1`
	var args []any
	if q.MaterialID > 0 {
		args = append(args, q.MaterialID)
		query += ` AND l.material_id = $` + strconv.Itoa(len(args))
	}
	if q.SupplierID > 0 {
		args = append(args, q.SupplierID)
		query += ` AND l.supplier_id = $` + strconv.Itoa(len(args))
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		args = append(args, "%"+term+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (l.lot_number ILIKE $` + n + ` OR l.traceability_code ILIKE $` + n + `)`
	}
	query += ` ORDER BY l.expiry_date ASC NULLS LAST, l.id ASC`
	return queryLots(ctx, r.pool, query, args...)
}

func (t *txRepo) GetMaterialForUpdate(ctx context.Context, id int64) (Material, error) {
	return getMaterial(ctx, t.tx, id, true)
}

func (t *txRepo) GetLotForUpdate(ctx context.Context, id int64) (Lot, error) {
	return getLot(ctx, t.tx, id, true)
}

func (t *txRepo) ListLotsForUpdate(ctx context.Context, materialID int64) ([]Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM raw_material_lots l JOIN raw_materials m ON m.id = l.material_id
		WHERE l.material_id = $1 ORDER BY l.id ASC FOR UPDATE OF l`
	return queryLots(ctx, t.tx, query, materialID)
}

func (t *txRepo) UpdateMaterial(ctx context.Context, m Material) error {
	tag, err := t.tx.Exec(ctx, `UPDATE raw_materials SET
		code = $1, name = $2, search_key = $3, description = $4, category = $5, supplier_id = $6,
		available_qty = $7, unit_price = $8, storage_condition = $9, location = $10,
		manufacture_date = $11, expiry_date = $12, days_valid_after_opening = $13,
		opened = $14, opened_at = $15, quarantined = $16, quarantine_reason = $17, updated_at = NOW()
		WHERE id = $18`,
		m.Code, m.Name, shared.FoldSearch(m.Name), m.Description, m.Category, m.SupplierID,
		m.AvailableQty, m.UnitPrice, m.StorageCondition, m.Location,
		m.ManufactureDate, m.ExpiryDate, m.DaysValidAfterOpening,
		m.Opened, m.OpenedAt, m.Quarantined, m.QuarantineReason, m.ID)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

func (t *txRepo) UpdateLot(ctx context.Context, l Lot) error {
	tag, err := t.tx.Exec(ctx, `UPDATE raw_material_lots SET
		supplier_id = $1, lot_number = $2, manufacture_date = $3, expiry_date = $4, invoice_ref = $5,
		received_mg = $6, available_mg = $7, quality_approved = $8, approved_at = $9, approved_by = $10,
		notes = $11, storage_location = $12, storage_conditions = $13, opened = $14, opened_at = $15,
		traceability_code = $16, updated_at = NOW()
		WHERE id = $17`,
		l.SupplierID, l.LotNumber, l.ManufactureDate, l.ExpiryDate, l.InvoiceRef,
		l.ReceivedMg, l.AvailableMg, l.QualityApproved, l.ApprovedAt, l.ApprovedBy,
		l.Notes, l.StorageLocation, l.StorageConditions, l.Opened, l.OpenedAt,
		l.TraceabilityCode, l.ID)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLotNotFound
	}
	return nil
}

func (t *txRepo) SupplierExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (t *txRepo) InsertMaterial(ctx context.Context, m Material) (Material, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO raw_materials (
		code, name, search_key, description, category, supplier_id, available_qty, unit, unit_price,
		storage_condition, location, manufacture_date, expiry_date, days_valid_after_opening,
		opened, opened_at, quarantined, quarantine_reason, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at`,
		m.Code, m.Name, shared.FoldSearch(m.Name), m.Description, m.Category, m.SupplierID, m.AvailableQty,
		string(m.Unit), m.UnitPrice, m.StorageCondition, m.Location, m.ManufactureDate, m.ExpiryDate,
		m.DaysValidAfterOpening, m.Opened, m.OpenedAt, m.Quarantined, m.QuarantineReason, m.ReceivedAt,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Material{}, db.Classify(err)
	}
	return m, nil
}

func (t *txRepo) DeleteMaterial(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM raw_materials WHERE id = $1`, id); err != nil {
		return db.Classify(err)
	}
	return nil
}

func (t *txRepo) CountLotsForMaterial(ctx context.Context, materialID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM raw_material_lots WHERE material_id = $1`, materialID).Scan(&n)
	return n, err
}

func (t *txRepo) InsertLot(ctx context.Context, l Lot) (Lot, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO raw_material_lots (
		material_id, supplier_id, lot_number, manufacture_date, expiry_date, invoice_ref,
		received_mg, available_mg, received_at, quality_approved, approved_at, approved_by,
		notes, storage_location, storage_conditions, opened, opened_at, traceability_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at`,
		l.MaterialID, l.SupplierID, l.LotNumber, l.ManufactureDate, l.ExpiryDate, l.InvoiceRef,
		l.ReceivedMg, l.AvailableMg, l.ReceivedAt, l.QualityApproved, l.ApprovedAt, l.ApprovedBy,
		l.Notes, l.StorageLocation, l.StorageConditions, l.Opened, l.OpenedAt, l.TraceabilityCode,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Lot{}, db.Classify(err)
	}
	return l, nil
}

func (t *txRepo) DeleteLot(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM raw_material_lots WHERE id = $1`, id); err != nil {
		return db.Classify(err)
	}
	return nil
}

func getMaterial(ctx context.Context, q querier, id int64, lock bool) (Material, error) {
	query := `SELECT ` + materialColumns + ` FROM raw_materials m WHERE m.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	m, err := scanMaterial(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Material{}, fmt.Errorf("%w: id %d", ErrMaterialNotFound, id)
	}
	return m, err
}

func getLot(ctx context.Context, q querier, id int64, lock bool) (Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM raw_material_lots l JOIN raw_materials m ON m.id = l.material_id WHERE l.id = $1`
	if lock {
		query += ` FOR UPDATE OF l`
	}
	l, err := scanLot(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lot{}, fmt.Errorf("%w: id %d", ErrLotNotFound, id)
	}
	return l, err
}

func queryLots(ctx context.Context, q querier, query string, args ...any) ([]Lot, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanMaterial(row pgx.Row) (Material, error) {
	var m Material
	var unit string
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Description, &m.Category, &m.SupplierID, &m.AvailableQty, &unit,
		&m.UnitPrice, &m.StorageCondition, &m.Location, &m.ManufactureDate, &m.ExpiryDate,
		&m.DaysValidAfterOpening, &m.Opened, &m.OpenedAt, &m.Quarantined, &m.QuarantineReason,
		&m.ReceivedAt, &m.CreatedAt, &m.UpdatedAt)
	m.Unit = Unit(unit)
	return m, err
}

func scanLot(row pgx.Row) (Lot, error) {
	var l Lot
	err := row.Scan(&l.ID, &l.MaterialID, &l.SupplierID, &l.LotNumber, &l.ManufactureDate, &l.ExpiryDate,
		&l.InvoiceRef, &l.ReceivedMg, &l.AvailableMg, &l.ReceivedAt, &l.QualityApproved, &l.ApprovedAt,
		&l.ApprovedBy, &l.Notes, &l.StorageLocation, &l.StorageConditions, &l.Opened, &l.OpenedAt,
		&l.TraceabilityCode, &l.CreatedAt, &l.UpdatedAt, &l.DaysValidAfterOpening)
	return l, err
}

func materialSortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "m.name " + dir
	case "expiry_date":
		return "m.expiry_date " + dir + " NULLS LAST, m.code ASC"
	case "received_at":
		return "m.received_at " + dir + ", m.code ASC"
	default:
		return "m.code " + dir
	}
}
