package storage

import "errors"

// Errors for storages.
var (
	ErrNotFound      = errors.New("storage entry not found")
	ErrAlreadyExists = errors.New("storage entry already exists")
)
