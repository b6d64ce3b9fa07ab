package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/capsula-erp/capsula/internal/shared"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	tag   string
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag(f.tag), f.err
}

func TestIdempotencyStore(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := &fakeExecer{tag: "INSERT 0 1"}
	store := NewIdempotencyStore(fake)
	store.clock = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "production.batch"))
	require.Equal(t, []any{"req-1", "production.batch", now}, fake.calls[0].args)

	require.ErrorIs(t, store.CheckAndInsert(ctx, "", "production.batch"), shared.ErrValidation)

	fake.err = &pgconn.PgError{Code: "23505", ConstraintName: "idempotency_keys_pkey"}
	err := store.CheckAndInsert(ctx, "req-1", "production.batch")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.ErrorIs(t, err, shared.ErrDuplicate)

	fake.err = nil
	require.NoError(t, store.Delete(ctx, "", "production.batch"))
	require.Len(t, fake.calls, 2)

	fake.tag = "DELETE 3"
	removed, err := store.Prune(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(3), removed)
	require.Equal(t, now.Add(-48*time.Hour), fake.calls[2].args[0])

	_, err = store.Prune(ctx, 0)
	require.ErrorIs(t, err, shared.ErrValidation)

	var nilStore *IdempotencyStore
	require.Error(t, nilStore.CheckAndInsert(ctx, "k", "m"))
}

func TestAuditWriter(t *testing.T) {
	fake := &fakeExecer{tag: "INSERT 0 1"}
	writer := NewAuditWriter(fake)
	ctx := shared.ContextWithActor(context.Background(), "Ana Santos")

	require.NoError(t, writer.Record(ctx, shared.AuditLog{
		Action: "lot:approve", Entity: "raw_material_lot", EntityID: "7",
		Meta: map[string]any{"lot_number": "L1001-001"},
	}))
	args := fake.calls[0].args
	require.Equal(t, "Ana Santos", args[0])
	require.JSONEq(t, `{"lot_number":"L1001-001"}`, string(args[4].([]byte)))
	require.Nil(t, args[5])

	require.NoError(t, writer.Record(context.Background(), shared.AuditLog{Action: "a", Entity: "e", EntityID: "1"}))
	require.Equal(t, shared.SystemActor, fake.calls[1].args[0])
	require.Nil(t, fake.calls[1].args[4])

	require.Error(t, writer.Record(ctx, shared.AuditLog{Action: "lot:approve"}))

	fake.err = errors.New("conn closed")
	require.EqualError(t, writer.Record(ctx, shared.AuditLog{Action: "a", Entity: "e", EntityID: "1"}), "conn closed")
}
