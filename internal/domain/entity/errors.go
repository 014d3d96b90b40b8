package entity

import "errors"

var (
	// ErrNotFound is returned when a subject or policy does not exist
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by a save whose expected version is stale
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidArgument is returned for malformed input
	ErrInvalidArgument = errors.New("invalid argument")
)
