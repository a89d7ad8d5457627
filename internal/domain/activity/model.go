package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeEntryAdded         ActivityType = "entry_added"
	TypeEntryUpdated       ActivityType = "entry_updated"
	TypeEntryRemoved       ActivityType = "entry_removed"
	TypeLedgerCleared      ActivityType = "ledger_cleared"
	TypeTermAdded          ActivityType = "term_added"
	TypeTermRemoved        ActivityType = "term_removed"
	TypeSecondMajorToggled ActivityType = "second_major_toggled"
	TypeSignedIn           ActivityType = "signed_in"
	TypeSignedOut          ActivityType = "signed_out"
	TypePushed             ActivityType = "pushed"
	TypePulled             ActivityType = "pulled"
	TypeSyncFailed         ActivityType = "sync_failed"
	TypeSessionExpired     ActivityType = "session_expired"
)

// Types lists every activity type.
var Types = []ActivityType{
	TypeEntryAdded, TypeEntryUpdated, TypeEntryRemoved, TypeLedgerCleared,
	TypeTermAdded, TypeTermRemoved, TypeSecondMajorToggled,
	TypeSignedIn, TypeSignedOut, TypePushed, TypePulled, TypeSyncFailed, TypeSessionExpired,
}

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case TypeEntryAdded, TypeEntryUpdated, TypeEntryRemoved, TypeLedgerCleared,
		TypeTermAdded, TypeTermRemoved, TypeSecondMajorToggled,
		TypeSignedIn, TypeSignedOut, TypePushed, TypePulled, TypeSyncFailed, TypeSessionExpired:
		return true
	}
	return false
}

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	ActivityType ActivityType `json:"type"`
	EntryID      *string      `json:"entry_id,omitempty"`
	Term         *string      `json:"term,omitempty"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
