package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrRecordNotFound no row matched the lookup
	ErrRecordNotFound = errors.New("record not found")
	// ErrUniqueViolation a unique constraint was breached
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrForeignKeyViolation the referenced row does not exist
	ErrForeignKeyViolation = errors.New("foreign key violation")
	// ErrCheckViolation a check constraint rejected the row
	ErrCheckViolation = errors.New("check constraint violation")
	// ErrStoreFailure any other database failure
	ErrStoreFailure = errors.New("database error")
)

// postgres SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// classify maps driver errors onto the package sentinels, the original
// error stays in the chain
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrUniqueViolation) ||
		errors.Is(err, ErrForeignKeyViolation) ||
		errors.Is(err, ErrCheckViolation) ||
		errors.Is(err, ErrStoreFailure) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrRecordNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
		case pgCheckViolation:
			return fmt.Errorf("%w: %w", ErrCheckViolation, err)
		}
	}

	// sqlite reports constraint failures only through the message
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"):
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case strings.Contains(msg, "foreign key"):
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	case strings.Contains(msg, "check constraint"):
		return fmt.Errorf("%w: %w", ErrCheckViolation, err)
	}

	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}

// IsNotFound reports whether err is a missing record
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// expectAffected turns a write that matched nothing into ErrRecordNotFound
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
