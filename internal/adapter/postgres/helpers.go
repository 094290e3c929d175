package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/taskpad/internal/domain"
	"github.com/Strob0t/taskpad/internal/middleware"
)

// Postgres error codes the store maps onto domain errors.
const (
	pgUniqueViolation    = "23505"
	pgInvalidTextRepr    = "22P02" // e.g. a malformed UUID in a WHERE clause
	pgForeignKeyViolated = "23503"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// userFromCtx extracts the owning user ID from the request context.
// All task queries must use this to enforce isolation.
func userFromCtx(ctx context.Context) string {
	return middleware.UserIDFromContext(ctx)
}

// orEmpty returns items unchanged if non-nil, or an empty slice if nil.
// Useful to ensure JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// wrapErr maps driver errors onto domain errors with the given message.
// Missing rows and malformed IDs become ErrNotFound, unique violations ErrConflict.
func wrapErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, pgx.ErrNoRows), pgCode(err) == pgInvalidTextRepr:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case pgCode(err) == pgUniqueViolation:
		return fmt.Errorf("%s: %w", msg, domain.ErrConflict)
	case pgCode(err) == pgForeignKeyViolated:
		return fmt.Errorf("%s: %w", msg, domain.Invalid("user_id", "unknown user"))
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

// execExpectOne verifies that an Exec affected exactly one row. If not
// (and err is nil), it returns domain.ErrNotFound with the given message.
func execExpectOne(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return wrapErr(err, format, args...)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", domain.ErrNotFound)
	}
	return nil
}
