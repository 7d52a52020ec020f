package database

import (
	"errors"
)

// Errors.
var (
	ErrNotFound      = errors.New("database entry not found")
	ErrAlreadyExists = errors.New("database entry already exists")
	ErrReadOnly      = errors.New("database is read only")
	ErrShuttingDown  = errors.New("database system is shutting down")
	ErrNotRegistered = errors.New("database not registered")
)
