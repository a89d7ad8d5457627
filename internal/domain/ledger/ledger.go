package ledger

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rpggio/gradcredits/internal/clock"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/requirement"
)

// AddRequest carries the caller-supplied fields of a new entry.
type AddRequest struct {
	Term       string
	Bucket     credit.Bucket
	Credits    float64
	CourseName string
	MajorTrack credit.MajorTrack
	Note       string
}

// UpdateRequest replaces the mutable fields of an entry.
type UpdateRequest struct {
	Credits    float64
	CourseName string
	MajorTrack credit.MajorTrack
	Note       string
}

// Snapshot is a consistent view of the ledger and its derived state.
type Snapshot struct {
	Entries     []credit.Entry       `json:"entries"`
	Totals      requirement.Totals   `json:"totals"`
	Status      []requirement.Status `json:"status"`
	SecondMajor bool                 `json:"second_major_enabled"`
}

// Ledger is the ordered collection of credit entries. Totals and status rows
// are recomputed under the write lock before every mutation returns, so a
// reader never observes entries without matching derived state.
type Ledger struct {
	mu          sync.RWMutex
	clock       clock.Clock
	policy      requirement.Policy
	secondMajor bool
	entries     []credit.Entry
	totals      requirement.Totals
	status      []requirement.Status
}

// New returns an empty ledger evaluated against policy.
func New(policy requirement.Policy, clk clock.Clock) *Ledger {
	l := &Ledger{clock: clock.Or(clk), policy: policy}
	l.recompute()
	return l
}

// recompute must be called with mu held for writing.
func (l *Ledger) recompute() {
	l.totals = requirement.ComputeTotals(l.entries)
	l.status = requirement.StatusFromTotals(l.totals, l.policy, l.secondMajor)
}

// Add validates and appends a new entry with a fresh id and timestamp.
func (l *Ledger) Add(req AddRequest) (credit.Entry, error) {
	if err := credit.ValidateEntryInput(req.Bucket, req.Credits, req.MajorTrack); err != nil {
		return credit.Entry{}, err
	}

	entry := credit.Entry{
		ID:         credit.NewEntryID(),
		Term:       req.Term,
		Bucket:     req.Bucket,
		MajorTrack: req.MajorTrack,
		Credits:    req.Credits,
		CourseName: credit.NormalizeText(req.CourseName),
		Note:       credit.NormalizeText(req.Note),
		CreatedAt:  l.clock.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	l.recompute()
	return entry, nil
}

// Remove deletes the entry with id. It reports whether an entry was removed;
// removing an absent id is not an error.
func (l *Ledger) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}
	l.entries = slices.Delete(l.entries, idx, idx+1)
	l.recompute()
	return true
}

// Update replaces credits, course name, major track and note in place.
// Id, term, bucket and creation time are unchanged.
func (l *Ledger) Update(id string, req UpdateRequest) (credit.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return credit.Entry{}, ErrEntryNotFound
	}
	if err := credit.ValidateEntryInput(l.entries[idx].Bucket, req.Credits, req.MajorTrack); err != nil {
		return credit.Entry{}, err
	}

	e := &l.entries[idx]
	e.Credits = req.Credits
	e.CourseName = credit.NormalizeText(req.CourseName)
	e.MajorTrack = req.MajorTrack
	e.Note = credit.NormalizeText(req.Note)
	l.recompute()
	return *e, nil
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.recompute()
}

// Replace swaps the whole entry set, as when loading persisted or pulled
// state. Every entry must carry an id and pass validation; on any failure the
// ledger is left untouched.
func (l *Ledger) Replace(entries []credit.Entry) error {
	next := make([]credit.Entry, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry %d: missing id", i)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("entry %s: duplicate id", e.ID)
		}
		seen[e.ID] = struct{}{}
		if err := credit.ValidateEntryInput(e.Bucket, e.Credits, e.MajorTrack); err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
		next[i] = e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = next
	l.recompute()
	return nil
}

// SetSecondMajor changes the second-major flag and re-evaluates status rows.
func (l *Ledger) SetSecondMajor(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.secondMajor = enabled
	l.recompute()
}

// SecondMajor reports the second-major flag.
func (l *Ledger) SecondMajor() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.secondMajor
}

// Policy returns the policy the ledger evaluates against.
func (l *Ledger) Policy() requirement.Policy {
	return l.policy
}

// Entries returns a copy of the entries in insertion order.
func (l *Ledger) Entries() []credit.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Get returns the entry with id.
func (l *Ledger) Get(id string) (credit.Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.indexOf(id)
	if idx < 0 {
		return credit.Entry{}, false
	}
	return l.entries[idx], true
}

// HasTerm reports whether any entry references term.
func (l *Ledger) HasTerm(term string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.Term == term {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns entries with their derived totals and status rows.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Entries:     slices.Clone(l.entries),
		Totals:      l.totals,
		Status:      slices.Clone(l.status),
		SecondMajor: l.secondMajor,
	}
}

func (l *Ledger) indexOf(id string) int {
	return slices.IndexFunc(l.entries, func(e credit.Entry) bool { return e.ID == id })
}
