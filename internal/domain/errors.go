// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates an attempt to write an entity that already exists
// and must not be overwritten.
var ErrConflict = errors.New("conflict: resource already exists")

// ErrValidation indicates the input failed validation.
var ErrValidation = errors.New("validation failed")
