package sqlite

import (
	"fmt"
	"strings"

	"github.com/rpggio/gradcredits/internal/repository"
)

// constraintErrors maps SQLite constraint messages to repository errors.
// modernc.org/sqlite reports constraint failures only through the message.
var constraintErrors = []struct {
	marker string
	err    error
}{
	{"FOREIGN KEY constraint failed", repository.ErrForeignKeyViolation},
	{"UNIQUE constraint failed", repository.ErrConflict},
	{"PRIMARY KEY constraint failed", repository.ErrConflict},
	{"CHECK constraint failed", repository.ErrInvalidInput},
	{"NOT NULL constraint failed", repository.ErrInvalidInput},
}

// constraintError returns the repository error for a constraint failure,
// or nil when err is not one.
func constraintError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, c := range constraintErrors {
		if strings.Contains(msg, c.marker) {
			return c.err
		}
	}
	return nil
}

// wrapExec translates constraint failures and wraps anything else with what.
func wrapExec(what string, err error) error {
	if cerr := constraintError(err); cerr != nil {
		return fmt.Errorf("%s: %w", what, cerr)
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}
