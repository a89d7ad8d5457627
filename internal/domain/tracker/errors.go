package tracker

import "errors"

var (
	// ErrUnknownTerm is returned when an entry references an unregistered term.
	ErrUnknownTerm = errors.New("term is not registered")
	// ErrInvalidInput indicates a request missing required fields.
	ErrInvalidInput = errors.New("invalid input")
)
