package tracker

import (
	"context"

	"github.com/rpggio/gradcredits/internal/domain/activity"
)

// LocalStore persists the ledger and profile records. Loads return
// repository.ErrNotFound when nothing has been saved yet.
type LocalStore interface {
	LoadLedger(ctx context.Context) (*LedgerDocument, error)
	SaveLedger(ctx context.Context, doc *LedgerDocument) error
	LoadProfile(ctx context.Context) (*Profile, error)
	SaveProfile(ctx context.Context, profile *Profile) error
}

// Syncer is notified after each committed local mutation.
type Syncer interface {
	AfterMutation(ctx context.Context) error
}

// Journal records ledger events.
type Journal interface {
	Record(ctx context.Context, typ activity.ActivityType, summary string, details any)
}

// LedgerObserver receives the ledger size after each change.
type LedgerObserver interface {
	ObserveLedger(entries int, graduationCredits float64)
}
