// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	// ErrNotFound marks a vault path that does not exist on disk.
	ErrNotFound = errors.New("not found")
)
