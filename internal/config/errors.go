package config

import "errors"

// ErrNotFound is returned when a requested resource does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write collides with a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrReadOnly is returned by the config-backed repositories for any write.
var ErrReadOnly = errors.New("configuration-backed store is read-only")
