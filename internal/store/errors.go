package store

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a unique key, notably the
// token prefix. The caller may retry with a fresh secret.
var ErrConflict = errors.New("conflict")
