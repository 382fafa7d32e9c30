package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidID is returned when an id cannot be parsed.
	ErrInvalidID = errors.New("invalid id")
)
