package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing rows or remote resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTaskInsert means the tasks table did not return the inserted row.
	ErrTaskInsert = errors.New("task insert returned no row")
	// ErrConcurrentModification means a compare-and-swap write lost a race with another writer.
	ErrConcurrentModification = errors.New("row modified concurrently")
)
