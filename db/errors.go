package db

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrAlreadyBorrowed = errors.New("book already borrowed by user")
	ErrNoCopies        = errors.New("no copies available")
	ErrNotOwner        = errors.New("borrow record belongs to another user")
	ErrBookInUse       = errors.New("book has open borrow records")
	ErrHasHistory      = errors.New("user has borrow history")
)

// IsUniqueViolation reports whether err carries a Postgres unique_violation,
// raw or already translated by gorm.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// mapErr turns driver errors into the package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case IsUniqueViolation(err):
		return ErrDuplicate
	}
	return err
}
