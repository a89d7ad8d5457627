// Package repository holds the storage errors shared by every backend and
// the mocks used to stand in for them.
package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrConflict is a uniqueness failure: the key is already taken.
	ErrConflict = errors.New("conflict: entity already exists")

	// ErrForeignKeyViolation means a row references a parent that does not exist,
	// for example entries for an unknown remote user.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedVersion is a stored document written by a newer schema.
	ErrUnsupportedVersion = errors.New("unsupported document version")
)
