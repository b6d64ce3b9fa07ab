package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/capsula-erp/capsula/internal/shared"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Classify translates driver errors into the shared error taxonomy while
// keeping the original error in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", shared.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s: %w", shared.ErrDuplicate, pgErr.ConstraintName, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s: %w", shared.ErrProtected, pgErr.ConstraintName, err)
	case codeCheckViolation:
		return fmt.Errorf("%w: %s: %w", shared.ErrValidation, pgErr.ConstraintName, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
