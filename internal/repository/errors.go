package repository

import "errors"

// ErrNotFound is returned when a lookup by key matches no record.
var ErrNotFound = errors.New("repository: record not found")

// ErrNoColumns is returned by a partial update that names no columns.
var ErrNoColumns = errors.New("repository: no columns to update")
