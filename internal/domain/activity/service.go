package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rpggio/gradcredits/internal/clock"
	"github.com/rpggio/gradcredits/internal/domain/credit"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service handles activity log operations.
type Service struct {
	repo   Repository
	clock  clock.Clock
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, clk clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, clock: clock.Or(clk), logger: logger}
}

// LogActivity logs an activity entry with the current timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, entry *ActivityEntry) error {
	if entry == nil || !entry.ActivityType.Valid() {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// Record logs an event and only warns on failure. details, when non-nil, is
// stored as JSON; an entry or an id/term map also sets the entry and term
// columns.
func (s *Service) Record(ctx context.Context, typ ActivityType, summary string, details any) {
	if s == nil {
		return
	}
	entry := &ActivityEntry{ActivityType: typ, Summary: summary}
	switch d := details.(type) {
	case credit.Entry:
		entry.EntryID, entry.Term = &d.ID, &d.Term
	case map[string]string:
		if id, ok := d["id"]; ok {
			entry.EntryID = &id
		}
		if term, ok := d["term"]; ok {
			entry.Term = &term
		}
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = string(raw)
		}
	}
	if err := s.LogActivity(ctx, entry); err != nil {
		s.logger.Warn("activity journal write failed", "type", typ, "error", err)
	}
}

// GetRecentActivity lists activity entries with filtering, newest first.
func (s *Service) GetRecentActivity(ctx context.Context, opts ListActivityOptions) ([]ActivityEntry, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultListLimit
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	for _, t := range opts.Types {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown activity type %q", ErrInvalidInput, t)
		}
	}
	return s.repo.List(ctx, opts)
}

// Prune drops entries older than maxAge. A non-positive maxAge keeps everything.
func (s *Service) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	n, err := s.repo.Prune(ctx, s.clock.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("pruning activity: %w", err)
	}
	if n > 0 {
		s.logger.Info("activity pruned", "removed", n, "max_age", maxAge)
	}
	return n, nil
}
