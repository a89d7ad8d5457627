package identity

import "time"

// State is the sign-in state of the local client.
type State string

const (
	StateAnonymous      State = "ANONYMOUS"
	StateAuthenticating State = "AUTHENTICATING"
	StateAuthenticated  State = "AUTHENTICATED"
	// StateSyncing is a sub-state of StateAuthenticated while a push or pull is in flight.
	StateSyncing State = "SYNCING"
)

// Authenticated reports whether remote reads and writes are permitted.
func (s State) Authenticated() bool {
	return s == StateAuthenticated || s == StateSyncing
}

// Scope selects which sessions EndSession invalidates.
type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeGlobal Scope = "global"
)

// User is the identity bound by a provider session.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Session is a live provider session.
type Session struct {
	User        User      `json:"user"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Record is the persisted identity. It exists only while authenticated.
type Record struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"is_authenticated"`
}
