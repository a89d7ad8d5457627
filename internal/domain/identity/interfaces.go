package identity

import "context"

// Provider is the identity provider. The handshake itself (redirects, token
// exchange) is the provider's concern.
type Provider interface {
	// BeginInteractiveSignIn returns the URL the user must visit.
	BeginInteractiveSignIn(ctx context.Context, redirectTarget string) (string, error)
	// CompleteSessionFromCallback finishes sign-in. A nil session with a nil
	// error means the callback carried no session.
	CompleteSessionFromCallback(ctx context.Context, callbackURL string) (*Session, error)
	// GetCurrentSession returns the live session, or nil if there is none.
	GetCurrentSession(ctx context.Context) (*Session, error)
	EndSession(ctx context.Context, scope Scope) error
}

// Store persists the identity record.
type Store interface {
	LoadIdentity(ctx context.Context) (*Record, error)
	SaveIdentity(ctx context.Context, rec *Record) error
	// ClearIdentity deletes the record.
	ClearIdentity(ctx context.Context) error
}
