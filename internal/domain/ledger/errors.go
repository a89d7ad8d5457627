package ledger

import "errors"

var (
	// ErrEntryNotFound is returned when an entry id is not in the ledger.
	ErrEntryNotFound = errors.New("credit entry not found")
	// ErrTermExists is returned when adding a term that is already registered.
	ErrTermExists = errors.New("term already registered")
	// ErrTermNotFound is returned when a term is not registered.
	ErrTermNotFound = errors.New("term not registered")
	// ErrCanonicalTerm is returned when removing one of the seed terms.
	ErrCanonicalTerm = errors.New("canonical term cannot be removed")
	// ErrTermInUse is returned when removing a term that entries still reference.
	ErrTermInUse = errors.New("term has credit entries")
)
