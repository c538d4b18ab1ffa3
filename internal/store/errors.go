package store

import "errors"

// Sentinel errors returned across the store boundary. Adapters convert
// every backend outcome into one of these (or a wrapped driver error);
// they never panic and never let a raw driver error reach a client.
var (
	// ErrNotFound is returned when a record does not exist, or exists but
	// is not visible under the caller's owner scope.
	ErrNotFound = errors.New("not found")

	// ErrNotCreated is returned when the backend reports no created record.
	ErrNotCreated = errors.New("not created")

	// ErrNotUpdated is returned when an update matched zero records.
	ErrNotUpdated = errors.New("not updated")

	// ErrNotDeleted is returned when a delete matched zero records.
	ErrNotDeleted = errors.New("not deleted")
)
