package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/capsula-erp/capsula/internal/shared"
)

func TestClassify(t *testing.T) {
	require.NoError(t, Classify(nil))

	err := Classify(fmt.Errorf("get lot: %w", pgx.ErrNoRows))
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, err, pgx.ErrNoRows)

	dup := Classify(&pgconn.PgError{Code: "23505", ConstraintName: "suppliers_tax_id_key"})
	require.ErrorIs(t, dup, shared.ErrDuplicate)
	require.Contains(t, dup.Error(), "suppliers_tax_id_key")
	require.True(t, IsUniqueViolation(dup))

	fk := Classify(&pgconn.PgError{Code: "23503", ConstraintName: "raw_materials_supplier_id_fkey"})
	require.ErrorIs(t, fk, shared.ErrProtected)

	check := Classify(&pgconn.PgError{Code: "23514", ConstraintName: "raw_material_lots_available_le_received"})
	require.ErrorIs(t, check, shared.ErrValidation)

	other := errors.New("boom")
	require.Equal(t, other, Classify(other))
	require.False(t, IsUniqueViolation(other))
}

func TestMigrationsAreOrdered(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	require.Equal(t, "0001_init", migrations[0].Version)
	for i := 1; i < len(migrations); i++ {
		require.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
	require.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS raw_material_lots")
}

func TestMaterialQuantityKeepsMilligramScale(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	var widened bool
	for _, m := range migrations {
		if m.Version == "0002_material_qty_scale" {
			widened = true
			require.Contains(t, m.SQL, "available_qty TYPE NUMERIC(24,12)")
		}
	}
	require.True(t, widened)
}
