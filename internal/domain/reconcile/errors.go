package reconcile

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotAuthenticated is returned by remote operations while signed out.
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrNoSession indicates the identity provider returned no session.
	ErrNoSession = errors.New("no session")
	// ErrAlreadySignedIn rejects a sign-in while an identity is bound.
	ErrAlreadySignedIn = errors.New("already signed in")
	// ErrNotReconciled rejects a push before the sign-in reconciliation
	// has decided between pushing and pulling.
	ErrNotReconciled = errors.New("sign-in reconciliation pending")
)

// AuthError wraps a sign-in, sign-out or session failure.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth %s: %v", e.Op, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// SyncError wraps a push or pull failure.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string { return fmt.Sprintf("sync %s: %v", e.Op, e.Err) }
func (e *SyncError) Unwrap() error { return e.Err }

// TimeoutError reports a background call that exceeded its deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}
