package identity

import "errors"

var (
	// ErrNoIdentity is returned by a Store when no identity record is persisted.
	ErrNoIdentity = errors.New("no persisted identity")
	// ErrInvalidCallback indicates a sign-in callback URL the provider cannot use.
	ErrInvalidCallback = errors.New("invalid sign-in callback")
	// ErrNotConfigured indicates the provider lacks client credentials.
	ErrNotConfigured = errors.New("identity provider not configured")
)
