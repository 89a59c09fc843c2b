// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres) inside this directory.
package repository

import "errors"

var (
	// ErrStaleStatus is returned by compare-and-set updates when the row is no
	// longer in the expected status (or does not exist).
	ErrStaleStatus = errors.New("contract status changed concurrently")
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("duplicate key")
)

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
