package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidLimit       = errors.New("invalid limit")
	ErrUnsupportedBackend = errors.New("unsupported database backend")
	ErrMigrate            = errors.New("database migration failed")
)
