package models

import "errors"

// Domain errors shared across packages
var (
	// ErrNotFound indicates the requested entity is not known
	ErrNotFound = errors.New("not found")
)
