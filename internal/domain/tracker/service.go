package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/ledger"
	"github.com/rpggio/gradcredits/internal/domain/requirement"
	"github.com/rpggio/gradcredits/internal/repository"
)

// Service owns the ledger, the term registry and the second-major flag. All
// mutations are serialized; each one is persisted locally before the syncer
// is notified.
type Service struct {
	mu       sync.Mutex
	ledger   *ledger.Ledger
	terms    *ledger.TermRegistry
	store    LocalStore
	journal  Journal
	observer LedgerObserver
	logger   *slog.Logger

	syncMu sync.RWMutex
	syncer Syncer
}

// NewService creates a tracker with an empty ledger and the canonical terms.
func NewService(store LocalStore, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	policy := requirement.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	return &Service{
		ledger:   ledger.New(policy, opts.Clock),
		terms:    ledger.NewTermRegistry(),
		store:    store,
		journal:  opts.Journal,
		observer: opts.Observer,
		logger:   logger,
	}
}

// SetSyncer installs the component notified after each mutation.
func (s *Service) SetSyncer(syncer Syncer) {
	s.syncMu.Lock()
	s.syncer = syncer
	s.syncMu.Unlock()
}

// Load restores the ledger, terms and profile from the local store.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.LoadLedger(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return fmt.Errorf("loading ledger: %w", err)
	default:
		if err := s.ledger.Replace(doc.Entries); err != nil {
			return fmt.Errorf("restoring ledger: %w", err)
		}
		s.terms.Replace(append(doc.Terms, termsOf(doc.Entries)...))
	}

	profile, err := s.store.LoadProfile(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return fmt.Errorf("loading profile: %w", err)
	default:
		s.ledger.SetSecondMajor(profile.SecondMajorEnabled)
	}

	s.observe()
	s.logger.Info("ledger loaded", "entries", s.ledger.Len(), "terms", len(s.terms.List()))
	return nil
}

// AddCredit validates and records a credit entry.
func (s *Service) AddCredit(ctx context.Context, req AddCreditRequest) (*credit.Entry, *SyncWarning, error) {
	term := strings.TrimSpace(req.Term)
	if !credit.ValidTermFormat(term) {
		return nil, nil, fmt.Errorf("%w: %q", credit.ErrInvalidTerm, req.Term)
	}

	s.mu.Lock()
	if !s.terms.Contains(term) {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTerm, term)
	}
	prev := s.ledger.Entries()
	entry, err := s.ledger.Add(ledger.AddRequest{
		Term:       term,
		Bucket:     req.Bucket,
		Credits:    req.Credits,
		CourseName: req.CourseName,
		MajorTrack: req.MajorTrack,
		Note:       req.Note,
	})
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	if err := s.commitLedger(ctx, prev); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	s.mu.Unlock()

	s.record(ctx, activity.TypeEntryAdded, fmt.Sprintf("added %g %s credits in %s", entry.Credits, entry.Bucket, entry.Term), entry)
	return &entry, s.afterMutation(ctx), nil
}

// UpdateCredit replaces the mutable fields of an existing entry.
func (s *Service) UpdateCredit(ctx context.Context, req UpdateCreditRequest) (*credit.Entry, *SyncWarning, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, nil, ErrInvalidInput
	}

	s.mu.Lock()
	prev := s.ledger.Entries()
	entry, err := s.ledger.Update(req.ID, ledger.UpdateRequest{
		Credits:    req.Credits,
		CourseName: req.CourseName,
		MajorTrack: req.MajorTrack,
		Note:       req.Note,
	})
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	if err := s.commitLedger(ctx, prev); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	s.mu.Unlock()

	s.record(ctx, activity.TypeEntryUpdated, fmt.Sprintf("updated entry %s", entry.ID), entry)
	return &entry, s.afterMutation(ctx), nil
}

// RemoveCredit deletes an entry. Removing an unknown id reports false and
// changes nothing.
func (s *Service) RemoveCredit(ctx context.Context, id string) (bool, *SyncWarning, error) {
	s.mu.Lock()
	prev := s.ledger.Entries()
	if !s.ledger.Remove(id) {
		s.mu.Unlock()
		return false, nil, nil
	}
	if err := s.commitLedger(ctx, prev); err != nil {
		s.mu.Unlock()
		return false, nil, err
	}
	s.mu.Unlock()

	s.record(ctx, activity.TypeEntryRemoved, fmt.Sprintf("removed entry %s", id), map[string]string{"id": id})
	return true, s.afterMutation(ctx), nil
}

// ClearCredits removes every entry and returns how many were removed.
func (s *Service) ClearCredits(ctx context.Context) (int, *SyncWarning, error) {
	s.mu.Lock()
	prev := s.ledger.Entries()
	s.ledger.Clear()
	if err := s.commitLedger(ctx, prev); err != nil {
		s.mu.Unlock()
		return 0, nil, err
	}
	s.mu.Unlock()

	s.record(ctx, activity.TypeLedgerCleared, fmt.Sprintf("cleared %d entries", len(prev)), nil)
	return len(prev), s.afterMutation(ctx), nil
}

// AddTerm registers a term of the form {year}-{1|2}.
func (s *Service) AddTerm(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	if !credit.ValidTermFormat(term) {
		return fmt.Errorf("%w: %q", credit.ErrInvalidTerm, term)
	}

	s.mu.Lock()
	if !s.terms.Add(term) {
		s.mu.Unlock()
		return ledger.ErrTermExists
	}
	if err := s.saveLedger(ctx); err != nil {
		s.terms.Remove(term, nil)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.record(ctx, activity.TypeTermAdded, "added term "+term, map[string]string{"term": term})
	return nil
}

// RemoveTerm unregisters a non-canonical term no entry references.
func (s *Service) RemoveTerm(ctx context.Context, term string) error {
	s.mu.Lock()
	if err := s.terms.RemoveChecked(term, s.ledger); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.saveLedger(ctx); err != nil {
		s.terms.Add(term)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.record(ctx, activity.TypeTermRemoved, "removed term "+term, map[string]string{"term": term})
	return nil
}

// Terms lists registered terms in (year, half) order with their credit sums.
func (s *Service) Terms() []TermInfo {
	entries := s.ledger.Entries()
	credits := make(map[string]float64)
	counts := make(map[string]int)
	for _, e := range entries {
		credits[e.Term] += e.Credits
		counts[e.Term]++
	}

	terms := s.terms.List()
	out := make([]TermInfo, 0, len(terms))
	for _, t := range terms {
		out = append(out, TermInfo{
			Term:      t,
			Label:     credit.TermLabel(t),
			Canonical: credit.IsCanonicalTerm(t),
			Credits:   credits[t],
			Entries:   counts[t],
		})
	}
	return out
}

// SetSecondMajor updates the profile flag and re-evaluates requirements.
func (s *Service) SetSecondMajor(ctx context.Context, enabled bool) (*Progress, *SyncWarning, error) {
	s.mu.Lock()
	prev := s.ledger.SecondMajor()
	s.ledger.SetSecondMajor(enabled)
	if err := s.store.SaveProfile(ctx, &Profile{SecondMajorEnabled: enabled}); err != nil {
		s.ledger.SetSecondMajor(prev)
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("saving profile: %w", err)
	}
	s.mu.Unlock()

	s.record(ctx, activity.TypeSecondMajorToggled, fmt.Sprintf("second major enabled=%t", enabled), map[string]bool{"enabled": enabled})
	warning := s.afterMutation(ctx)
	progress := s.Progress()
	return &progress, warning, nil
}

// Progress evaluates the ledger against the policy.
func (s *Service) Progress() Progress {
	snap := s.ledger.Snapshot()
	return Progress{
		SecondMajorEnabled:            snap.SecondMajor,
		Totals:                        snap.Totals,
		Requirements:                  snap.Status,
		ByBucket:                      requirement.TotalsByBucket(snap.Entries),
		ByTerm:                        requirement.TotalsByTerm(snap.Entries),
		EligibleIgnoringSecondMajor:   requirement.EligibleIgnoringSecondMajor(snap.Status),
		EligibleRespectingSecondMajor: requirement.EligibleRespectingSecondMajor(snap.Status),
		Policy:                        s.ledger.Policy(),
		EntryCount:                    len(snap.Entries),
	}
}

// Entries lists entries in insertion order, optionally limited to one term.
func (s *Service) Entries(term string) []credit.Entry {
	entries := s.ledger.Entries()
	if term == "" {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Term == term {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (s *Service) Len() int {
	return s.ledger.Len()
}

// Export returns the state pushed to the remote mirror.
func (s *Service) Export() Workspace {
	snap := s.ledger.Snapshot()
	return Workspace{Entries: snap.Entries, SecondMajorEnabled: snap.SecondMajor}
}

// Import replaces local state wholesale with pulled state. Terms referenced by
// the pulled entries are registered. The syncer is not notified.
func (s *Service) Import(ctx context.Context, ws Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevEntries := s.ledger.Entries()
	prevTerms := s.terms.List()
	prevSecond := s.ledger.SecondMajor()

	if err := s.ledger.Replace(ws.Entries); err != nil {
		return fmt.Errorf("importing entries: %w", err)
	}
	for _, t := range termsOf(ws.Entries) {
		s.terms.Add(t)
	}
	s.ledger.SetSecondMajor(ws.SecondMajorEnabled)

	rollback := func() {
		_ = s.ledger.Replace(prevEntries)
		s.terms.Replace(prevTerms)
		s.ledger.SetSecondMajor(prevSecond)
	}
	if err := s.saveLedger(ctx); err != nil {
		rollback()
		return err
	}
	if err := s.store.SaveProfile(ctx, &Profile{SecondMajorEnabled: ws.SecondMajorEnabled}); err != nil {
		rollback()
		return fmt.Errorf("saving profile: %w", err)
	}
	s.observe()
	return nil
}

// commitLedger persists the ledger, restoring prev in memory on failure.
// Callers hold mu.
func (s *Service) commitLedger(ctx context.Context, prev []credit.Entry) error {
	if err := s.saveLedger(ctx); err != nil {
		if rerr := s.ledger.Replace(prev); rerr != nil {
			s.logger.Error("ledger rollback failed", "error", rerr)
		}
		return err
	}
	s.observe()
	return nil
}

func (s *Service) saveLedger(ctx context.Context) error {
	doc := &LedgerDocument{Entries: s.ledger.Entries(), Terms: s.terms.List()}
	if err := s.store.SaveLedger(ctx, doc); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}
	return nil
}

func (s *Service) afterMutation(ctx context.Context) *SyncWarning {
	s.syncMu.RLock()
	syncer := s.syncer
	s.syncMu.RUnlock()
	if syncer == nil {
		return nil
	}
	if err := syncer.AfterMutation(ctx); err != nil {
		return &SyncWarning{Message: err.Error(), Err: err}
	}
	return nil
}

func (s *Service) record(ctx context.Context, typ activity.ActivityType, summary string, details any) {
	if s.journal != nil {
		s.journal.Record(ctx, typ, summary, details)
	}
}

func (s *Service) observe() {
	if s.observer != nil {
		snap := s.ledger.Snapshot()
		s.observer.ObserveLedger(len(snap.Entries), snap.Totals.Graduation)
	}
}

func termsOf(entries []credit.Entry) []string {
	var out []string
	for _, e := range entries {
		if e.Term != "" {
			out = append(out, e.Term)
		}
	}
	return out
}
