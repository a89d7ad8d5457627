package reconcile

import (
	"context"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
)

// RemoteStore is the per-account remote mirror. Lookups return
// repository.ErrNotFound for missing rows.
type RemoteStore interface {
	FindUser(ctx context.Context, externalID string) (*RemoteUser, error)
	UpsertUser(ctx context.Context, user *RemoteUser) (*RemoteUser, error)
	GetProfile(ctx context.Context, userID string) (*RemoteProfile, error)
	UpsertProfile(ctx context.Context, profile *RemoteProfile) error
	// ListEntries returns entries in ascending created_at order.
	ListEntries(ctx context.Context, userID string) ([]credit.Entry, error)
	// ReplaceEntries deletes every entry of userID, then inserts entries.
	ReplaceEntries(ctx context.Context, userID string, entries []credit.Entry) error
}

// Workspace is the local state the reconciler pushes and replaces.
type Workspace interface {
	Export() tracker.Workspace
	Import(ctx context.Context, ws tracker.Workspace) error
	Len() int
}

// SyncObserver records the outcome of each remote operation.
type SyncObserver interface {
	ObserveSync(op string, elapsed time.Duration, err error)
}
