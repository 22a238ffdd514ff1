// Package apperr holds the error taxonomy shared by stores and surfaces.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrConfig   = errors.New("configuration error")
	ErrInvalid  = errors.New("invalid input")

	// ErrContention is returned when an insert exhausted its retry budget.
	ErrContention = errors.New("write contention: retry limit exceeded")
	// ErrInsertInFlight is returned when a delete targets a timestamp that an
	// insert currently holds a watch marker on. Never retried.
	ErrInsertInFlight = errors.New("insert in flight for timestamp")
	// ErrDeleteConflict is returned when the watched delete transaction aborted.
	ErrDeleteConflict = errors.New("delete aborted by concurrent write")
)
