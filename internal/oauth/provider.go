package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/repository"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Google endpoints used when Config leaves them empty.
const (
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	GoogleRevokeURL   = "https://oauth2.googleapis.com/revoke"
)

// pendingTTL bounds how long a sign-in started with BeginInteractiveSignIn
// may take to complete.
const pendingTTL = 10 * time.Minute

// TokenStore persists the provider token.
type TokenStore interface {
	LoadToken(ctx context.Context) (*oauth2.Token, error)
	SaveToken(ctx context.Context, tok *oauth2.Token) error
	DeleteToken(ctx context.Context) error
}

// Config describes the OAuth client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RevokeURL    string
}

type pending struct {
	verifier string
	target   string
	created  time.Time
}

// Provider implements identity.Provider with the authorization code flow
// and PKCE.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	revokeURL   string
	tokens      TokenStore
	http        *http.Client
	now         func() time.Time
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[string]pending
}

var _ identity.Provider = (*Provider)(nil)

// NewProvider creates a Provider. Empty endpoint URLs default to Google.
func NewProvider(cfg Config, tokens TokenStore, logger *slog.Logger) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, identity.ErrNotConfigured
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = GoogleUserInfoURL
	}
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = GoogleRevokeURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		revokeURL:   cfg.RevokeURL,
		tokens:      tokens,
		http:        http.DefaultClient,
		now:         time.Now,
		logger:      logger,
		pending:     make(map[string]pending),
	}, nil
}

// BeginInteractiveSignIn returns the consent URL. The state parameter is
// remembered until the callback arrives.
func (p *Provider) BeginInteractiveSignIn(_ context.Context, redirectTarget string) (string, error) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	p.mu.Lock()
	p.prune()
	p.pending[state] = pending{verifier: verifier, target: redirectTarget, created: p.now()}
	p.mu.Unlock()

	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier)}
	if redirectTarget != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectTarget))
	}
	return p.oauth.AuthCodeURL(state, opts...), nil
}

// CompleteSessionFromCallback exchanges the code carried by callbackURL.
func (p *Provider) CompleteSessionFromCallback(ctx context.Context, callbackURL string) (*identity.Session, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrInvalidCallback, err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return nil, fmt.Errorf("%w: %s %s", identity.ErrInvalidCallback, e, q.Get("error_description"))
	}
	code := q.Get("code")
	if code == "" {
		return nil, nil
	}

	p.mu.Lock()
	pend, ok := p.pending[q.Get("state")]
	delete(p.pending, q.Get("state"))
	p.mu.Unlock()
	if !ok || p.now().Sub(pend.created) > pendingTTL {
		return nil, fmt.Errorf("%w: unknown or expired state", identity.ErrInvalidCallback)
	}

	opts := []oauth2.AuthCodeOption{oauth2.VerifierOption(pend.verifier)}
	if pend.target != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", pend.target))
	}
	tok, err := p.oauth.Exchange(p.clientContext(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	user, err := p.fetchUser(ctx, tok)
	if err != nil {
		return nil, err
	}
	if err := p.tokens.SaveToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	p.logger.Info("oauth session established", "user_id", user.ID)
	return &identity.Session{User: *user, AccessToken: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}

// GetCurrentSession refreshes the stored token if needed and returns the
// user it belongs to. No stored token means no session.
func (p *Provider) GetCurrentSession(ctx context.Context) (*identity.Session, error) {
	stored, err := p.tokens.LoadToken(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	tok, err := p.oauth.TokenSource(p.clientContext(ctx), stored).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if tok.AccessToken != stored.AccessToken {
		if err := p.tokens.SaveToken(ctx, tok); err != nil {
			p.logger.Warn("failed to persist refreshed token", "error", err)
		}
	}

	user, err := p.fetchUser(ctx, tok)
	if err != nil {
		return nil, err
	}
	return &identity.Session{User: *user, AccessToken: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}

// EndSession drops the local token. ScopeGlobal also revokes it at the
// provider, which signs every device out.
func (p *Provider) EndSession(ctx context.Context, scope identity.Scope) error {
	stored, err := p.tokens.LoadToken(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("load token: %w", err)
	}
	if err := p.tokens.DeleteToken(ctx); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if scope != identity.ScopeGlobal || stored == nil {
		return nil
	}

	token := stored.RefreshToken
	if token == "" {
		token = stored.AccessToken
	}
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke token: http %d", resp.StatusCode)
	}
	return nil
}

type userInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (p *Provider) fetchUser(ctx context.Context, tok *oauth2.Token) (*identity.User, error) {
	client := oauth2.NewClient(p.clientContext(ctx), oauth2.StaticTokenSource(tok))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: http %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, errors.New("userinfo missing subject or email")
	}
	return &identity.User{ID: info.Sub, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.http)
}

// prune drops abandoned sign-ins. Caller holds p.mu.
func (p *Provider) prune() {
	now := p.now()
	for state, pend := range p.pending {
		if now.Sub(pend.created) > pendingTTL {
			delete(p.pending, state)
		}
	}
}
