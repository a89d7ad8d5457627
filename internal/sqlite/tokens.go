package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/gradcredits/internal/repository"
	"golang.org/x/oauth2"
)

// TokenRepository stores the single identity provider token.
type TokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// LoadToken returns the stored token or repository.ErrNotFound.
func (r *TokenRepository) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	var tok oauth2.Token
	var refresh, tokenType sql.NullString
	var expiry sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_type, expiry FROM oauth_tokens WHERE id = 1`,
	).Scan(&tok.AccessToken, &refresh, &tokenType, &expiry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	tok.RefreshToken = refresh.String
	tok.TokenType = tokenType.String
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}
	return &tok, nil
}

// SaveToken replaces the stored token.
func (r *TokenRepository) SaveToken(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return repository.ErrInvalidInput
	}
	var expiry sql.NullTime
	if !tok.Expiry.IsZero() {
		expiry = sql.NullTime{Time: tok.Expiry.UTC(), Valid: true}
	}

	query := `
		INSERT INTO oauth_tokens (id, access_token, refresh_token, token_type, expiry)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = COALESCE(NULLIF(excluded.refresh_token, ''), oauth_tokens.refresh_token),
			token_type = excluded.token_type,
			expiry = excluded.expiry
	`
	if _, err := r.db.ExecContext(ctx, query,
		tok.AccessToken, nullString(tok.RefreshToken), nullString(tok.TokenType), expiry,
	); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// DeleteToken removes the stored token.
func (r *TokenRepository) DeleteToken(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
