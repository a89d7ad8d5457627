package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/transport"
)

// DefaultTimeout bounds each remote call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// ClientOptions configures a Client.
type ClientOptions struct {
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements reconcile.RemoteStore against a store server.
type Client struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
	nextID   atomic.Int64
	logger   *slog.Logger
}

var _ reconcile.RemoteStore = (*Client)(nil)

// NewClient creates a client for the store at baseURL.
func NewClient(baseURL string, opts ClientOptions, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/rpc",
		apiKey:   opts.APIKey,
		timeout:  opts.Timeout,
		http:     opts.HTTPClient,
		logger:   logger,
	}
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := transport.EncodeRequest(c.nextID.Add(1), method, params)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("remote call", "method", method, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	err = transport.DecodeResponse(resp.Body, out)
	var rpcErr *transport.Error
	if errors.As(err, &rpcErr) {
		return fromRPCError(method, rpcErr)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// FindUser implements reconcile.RemoteStore.
func (c *Client) FindUser(ctx context.Context, externalID string) (*reconcile.RemoteUser, error) {
	var u reconcile.RemoteUser
	if err := c.call(ctx, MethodFindUser, findUserParams{ExternalID: externalID}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertUser implements reconcile.RemoteStore.
func (c *Client) UpsertUser(ctx context.Context, user *reconcile.RemoteUser) (*reconcile.RemoteUser, error) {
	var u reconcile.RemoteUser
	if err := c.call(ctx, MethodUpsertUser, user, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetProfile implements reconcile.RemoteStore.
func (c *Client) GetProfile(ctx context.Context, userID string) (*reconcile.RemoteProfile, error) {
	var p reconcile.RemoteProfile
	if err := c.call(ctx, MethodGetProfile, userIDParams{UserID: userID}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile implements reconcile.RemoteStore.
func (c *Client) UpsertProfile(ctx context.Context, profile *reconcile.RemoteProfile) error {
	return c.call(ctx, MethodUpsertProfile, profile, nil)
}

// ListEntries implements reconcile.RemoteStore.
func (c *Client) ListEntries(ctx context.Context, userID string) ([]credit.Entry, error) {
	var res entriesResult
	if err := c.call(ctx, MethodListEntries, userIDParams{UserID: userID}, &res); err != nil {
		return nil, err
	}
	if res.Entries == nil {
		res.Entries = []credit.Entry{}
	}
	return res.Entries, nil
}

// ReplaceEntries implements reconcile.RemoteStore.
func (c *Client) ReplaceEntries(ctx context.Context, userID string, entries []credit.Entry) error {
	if entries == nil {
		entries = []credit.Entry{}
	}
	return c.call(ctx, MethodReplaceEntries, replaceEntriesParams{UserID: userID, Entries: entries}, nil)
}
