package catalog

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/alkuinvito/kasirin/internal/postgres"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// translate maps driver errors onto the package sentinels.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	case postgres.IsForeignKeyViolation(err):
		return invalid("%s references a missing record", what)
	}
	return err
}

func notFoundIfNone(tx *gorm.DB, what string) error {
	if tx.Error != nil {
		return translate(tx.Error, what)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return nil
}
