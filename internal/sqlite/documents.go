package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
	"github.com/rpggio/gradcredits/internal/repository"
)

const (
	documentLedger   = "ledger"
	documentProfile  = "profile"
	documentIdentity = "identity"

	profileVersion  = 1
	identityVersion = 1
)

// DocumentStore persists the tracker's local records as versioned JSON
// documents. It implements tracker.LocalStore and identity.Store.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// LoadLedger returns the ledger document, upgrading older versions.
func (s *DocumentStore) LoadLedger(ctx context.Context) (*tracker.LedgerDocument, error) {
	version, body, err := s.get(ctx, documentLedger)
	if err != nil {
		return nil, err
	}

	switch version {
	case legacyLedgerVersion:
		doc, err := upgradeLegacyLedger(body)
		if err != nil {
			return nil, err
		}
		if err := s.SaveLedger(ctx, doc); err != nil {
			return nil, fmt.Errorf("rewriting upgraded ledger: %w", err)
		}
		return doc, nil
	case tracker.LedgerDocumentVersion:
		var doc tracker.LedgerDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode ledger: %w", err)
		}
		return &doc, nil
	default:
		return nil, fmt.Errorf("ledger version %d: %w", version, repository.ErrUnsupportedVersion)
	}
}

// SaveLedger writes the ledger at the current version.
func (s *DocumentStore) SaveLedger(ctx context.Context, doc *tracker.LedgerDocument) error {
	return s.put(ctx, documentLedger, tracker.LedgerDocumentVersion, doc)
}

// LoadProfile returns the profile document.
func (s *DocumentStore) LoadProfile(ctx context.Context) (*tracker.Profile, error) {
	_, body, err := s.get(ctx, documentProfile)
	if err != nil {
		return nil, err
	}
	var p tracker.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}

// SaveProfile writes the profile document.
func (s *DocumentStore) SaveProfile(ctx context.Context, profile *tracker.Profile) error {
	return s.put(ctx, documentProfile, profileVersion, profile)
}

// LoadIdentity returns the persisted identity or identity.ErrNoIdentity.
func (s *DocumentStore) LoadIdentity(ctx context.Context) (*identity.Record, error) {
	_, body, err := s.get(ctx, documentIdentity)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, identity.ErrNoIdentity
	}
	if err != nil {
		return nil, err
	}
	var rec identity.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	return &rec, nil
}

// SaveIdentity writes the identity record. Only authenticated records are kept.
func (s *DocumentStore) SaveIdentity(ctx context.Context, rec *identity.Record) error {
	if rec == nil || !rec.IsAuthenticated || rec.User == nil {
		return s.ClearIdentity(ctx)
	}
	return s.put(ctx, documentIdentity, identityVersion, rec)
}

// ClearIdentity deletes the identity record.
func (s *DocumentStore) ClearIdentity(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, documentIdentity); err != nil {
		return fmt.Errorf("failed to clear identity: %w", err)
	}
	return nil
}

func (s *DocumentStore) get(ctx context.Context, name string) (int, []byte, error) {
	var version int
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT version, body FROM documents WHERE name = ?`, name,
	).Scan(&version, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, repository.ErrNotFound
		}
		return 0, nil, fmt.Errorf("failed to get %s document: %w", name, err)
	}
	return version, []byte(body), nil
}

func (s *DocumentStore) put(ctx context.Context, name string, version int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s document: %w", name, err)
	}

	query := `
		INSERT INTO documents (name, version, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			body = excluded.body,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, name, version, string(body), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save %s document: %w", name, err)
	}
	return nil
}
