package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrValidation is returned when a required field is empty after trimming.
	// It is raised before any persistence happens.
	ErrValidation = goerr.New("validation failed")

	// ErrItemNotFound is returned by update operations on unknown item IDs.
	// Delete is idempotent and does not use it.
	ErrItemNotFound = goerr.New("item not found")

	// ErrMalformedVector marks a stored vector that cannot be used for
	// scoring. Readers treat it as "no vector", not as a failure.
	ErrMalformedVector = goerr.New("malformed vector")
)
