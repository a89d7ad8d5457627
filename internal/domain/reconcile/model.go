package reconcile

import (
	"encoding/json"

	"github.com/rpggio/gradcredits/internal/domain/identity"
)

// RemoteUser is a row of the remote users table, keyed by ExternalID.
type RemoteUser struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	PictureURL string `json:"picture_url,omitempty"`
}

// RemoteProfile is a row of the remote user_profiles table.
type RemoteProfile struct {
	UserID             string          `json:"user_id"`
	SecondMajorEnabled bool            `json:"second_major_enabled"`
	Settings           json.RawMessage `json:"settings,omitempty"`
}

// Direction names which way a reconciliation moved data.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionPush Direction = "push"
	DirectionPull Direction = "pull"
)

// Account is the user-visible identity state.
type Account struct {
	State     identity.State `json:"state"`
	User      *identity.User `json:"user,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// SignInResult reports a completed sign-in and the reconciliation it ran.
type SignInResult struct {
	User      identity.User `json:"user"`
	Direction Direction     `json:"direction,omitempty"`
	Entries   int           `json:"entries"`
	SyncError string        `json:"sync_error,omitempty"`
}
