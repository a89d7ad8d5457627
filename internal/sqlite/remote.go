package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/repository"
)

// RemoteStore implements reconcile.RemoteStore on the store server's database.
type RemoteStore struct {
	db *DB
}

// NewRemoteStore creates a new RemoteStore
func NewRemoteStore(db *DB) *RemoteStore {
	return &RemoteStore{db: db}
}

// FindUser looks a user up by the identity provider's id.
func (s *RemoteStore) FindUser(ctx context.Context, externalID string) (*reconcile.RemoteUser, error) {
	var u reconcile.RemoteUser
	var name, picture sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, email, name, picture_url FROM users WHERE external_id = ?`,
		externalID,
	).Scan(&u.ID, &u.ExternalID, &u.Email, &name, &picture)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	u.Name = name.String
	u.PictureURL = picture.String
	return &u, nil
}

// UpsertUser inserts or updates the user keyed by external id and returns
// the stored row. The row id is assigned once and never changes.
func (s *RemoteStore) UpsertUser(ctx context.Context, user *reconcile.RemoteUser) (*reconcile.RemoteUser, error) {
	if user == nil || user.ExternalID == "" || user.Email == "" {
		return nil, repository.ErrInvalidInput
	}

	query := `
		INSERT INTO users (id, external_id, email, name, picture_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			picture_url = excluded.picture_url,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		uuid.NewString(),
		user.ExternalID,
		user.Email,
		nullString(user.Name),
		nullString(user.PictureURL),
		time.Now().UTC(),
	); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return s.FindUser(ctx, user.ExternalID)
}

// GetProfile returns the profile of userID.
func (s *RemoteStore) GetProfile(ctx context.Context, userID string) (*reconcile.RemoteProfile, error) {
	var p reconcile.RemoteProfile
	var settings string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, second_major_enabled, settings FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.SecondMajorEnabled, &settings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.Settings = json.RawMessage(settings)
	return &p, nil
}

// UpsertProfile inserts or updates the profile keyed by user id. Settings
// are left unchanged when the update carries none.
func (s *RemoteStore) UpsertProfile(ctx context.Context, profile *reconcile.RemoteProfile) error {
	if profile == nil || profile.UserID == "" {
		return repository.ErrInvalidInput
	}
	settings := "{}"
	if len(profile.Settings) > 0 {
		if !json.Valid(profile.Settings) {
			return repository.ErrInvalidInput
		}
		settings = string(profile.Settings)
	}

	query := `
		INSERT INTO user_profiles (user_id, second_major_enabled, settings, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			second_major_enabled = excluded.second_major_enabled,
			settings = CASE WHEN ? THEN excluded.settings ELSE user_profiles.settings END,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		profile.UserID, profile.SecondMajorEnabled, settings, time.Now().UTC(), len(profile.Settings) > 0,
	)
	if err != nil {
		return wrapExec("upsert profile", err)
	}
	return nil
}

// ListEntries returns the entries of userID oldest first.
func (s *RemoteStore) ListEntries(ctx context.Context, userID string) ([]credit.Entry, error) {
	query := `
		SELECT id, term, bucket, credits, course_name, major_track, note, created_at
		FROM credit_entries
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := []credit.Entry{}
	for rows.Next() {
		var e credit.Entry
		var course, track, note sql.NullString
		if err := rows.Scan(&e.ID, &e.Term, &e.Bucket, &e.Credits, &course, &track, &note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.CourseName = course.String
		e.MajorTrack = credit.MajorTrack(track.String)
		e.Note = note.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}
	return entries, nil
}

// ReplaceEntries deletes every entry of userID and inserts entries in one
// transaction.
func (s *RemoteStore) ReplaceEntries(ctx context.Context, userID string, entries []credit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credit_entries WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO credit_entries (
			id, user_id, term, bucket, credits, course_name, major_track, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, userID, e.Term, e.Bucket, e.Credits,
			nullString(e.CourseName), nullString(string(e.MajorTrack)), nullString(e.Note),
			createdAt.UTC(),
		); err != nil {
			return wrapExec("insert entry "+e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entries: %w", err)
	}
	return nil
}

// APIKeyResolver resolves bearer tokens against the api_keys table.
type APIKeyResolver struct {
	db *DB
}

// NewAPIKeyResolver creates a new APIKeyResolver
func NewAPIKeyResolver(db *DB) *APIKeyResolver {
	return &APIKeyResolver{db: db}
}

// ResolveClient returns the client id owning the key hash.
func (r *APIKeyResolver) ResolveClient(ctx context.Context, keyHash string) (string, error) {
	var clientID string
	err := r.db.QueryRowContext(ctx, `SELECT client_id FROM api_keys WHERE key_hash = ?`, keyHash).Scan(&clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UTC(), keyHash); err != nil {
		return "", fmt.Errorf("failed to touch api key: %w", err)
	}
	return clientID, nil
}

// CreateKey stores a key hash for clientID.
func (r *APIKeyResolver) CreateKey(ctx context.Context, keyHash, clientID, description string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, client_id, description) VALUES (?, ?, ?)`,
		keyHash, clientID, nullString(description),
	)
	if err != nil {
		return wrapExec("create api key", err)
	}
	return nil
}
