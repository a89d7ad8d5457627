package tracker

import (
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/requirement"
)

// LedgerDocumentVersion is the current schema version of the persisted ledger.
const LedgerDocumentVersion = 2

// LedgerDocument is the persisted ledger record.
type LedgerDocument struct {
	Entries []credit.Entry `json:"entries"`
	Terms   []string       `json:"semesters"`
}

// Profile is the persisted profile record.
type Profile struct {
	SecondMajorEnabled bool `json:"second_major_enabled"`
}

// Workspace is the state exchanged with the remote mirror.
type Workspace struct {
	Entries            []credit.Entry
	SecondMajorEnabled bool
}

// Progress is the evaluated view of the ledger.
type Progress struct {
	SecondMajorEnabled            bool                                 `json:"second_major_enabled"`
	Totals                        requirement.Totals                   `json:"totals"`
	Requirements                  []requirement.Status                 `json:"requirements"`
	ByBucket                      map[credit.Bucket]float64            `json:"by_bucket"`
	ByTerm                        map[string]map[credit.Bucket]float64 `json:"by_term"`
	EligibleIgnoringSecondMajor   bool                                 `json:"eligible_ignoring_second_major"`
	EligibleRespectingSecondMajor bool                                 `json:"eligible_respecting_second_major"`
	Policy                        requirement.Policy                   `json:"policy"`
	EntryCount                    int                                  `json:"entry_count"`
}

// TermInfo describes a registered term.
type TermInfo struct {
	Term      string  `json:"term"`
	Label     string  `json:"label"`
	Canonical bool    `json:"canonical"`
	Credits   float64 `json:"credits"`
	Entries   int     `json:"entries"`
}

// SyncWarning reports a push that failed after the local mutation was
// committed. The mutation stands.
type SyncWarning struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// AddCreditRequest defines credit entry inputs.
type AddCreditRequest struct {
	Term       string
	Bucket     credit.Bucket
	Credits    float64
	CourseName string
	MajorTrack credit.MajorTrack
	Note       string
}

// UpdateCreditRequest defines the mutable fields of an entry.
type UpdateCreditRequest struct {
	ID         string
	Credits    float64
	CourseName string
	MajorTrack credit.MajorTrack
	Note       string
}
