package storage

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound means the requested item, user or vote does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate means an insert collided with an existing row's key.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStorage means the durability layer failed (connectivity, constraint).
	ErrStorage = errors.New("storage error")
)

// isDuplicateKey reports whether err is a unique or primary key violation.
// Not every dialector translates these into gorm.ErrDuplicatedKey, so the
// driver messages for sqlite and postgres are matched as a fallback.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// wrapDB normalizes gorm errors into the package taxonomy.
func wrapDB(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}
