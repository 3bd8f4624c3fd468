package storage

import "errors"

var (
	// ErrNotFound is returned when a row lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEntry is returned when a log entry already exists for
	// the (habit, day) pair.
	ErrDuplicateEntry = errors.New("duplicate log entry")
)
