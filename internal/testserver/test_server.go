// Package testserver runs a store server over an in-memory database for tests.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rpggio/gradcredits/internal/metrics"
	"github.com/rpggio/gradcredits/internal/remote"
	"github.com/rpggio/gradcredits/internal/sqlite"
	"github.com/rpggio/gradcredits/internal/transport"
	"github.com/rpggio/gradcredits/migrations"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Store    *sqlite.RemoteStore
	Metrics  *metrics.Metrics
	Token    string
	ClientID string

	down atomic.Bool
}

// New starts a store server that accepts token as the API key of clientID.
func New(t *testing.T, token, clientID string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(migrations.Store))

	store := sqlite.NewRemoteStore(db)
	m := metrics.New()
	handler := transport.NewServer(remote.NewHandler(store, nil), transport.Options{
		Auth:     transport.AuthMiddleware(sqlite.NewAPIKeyResolver(db)),
		Metrics:  m.Handler(),
		Observer: m,
	})
	ts := &TestServer{
		DB:       db,
		Store:    store,
		Metrics:  m,
		Token:    token,
		ClientID: clientID,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ts.down.Load() {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		handler.ServeHTTP(w, r)
	}))
	ts.Server = server
	require.NoError(t, ts.AddAPIKey(token, clientID))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})
	return ts
}

func (ts *TestServer) AddAPIKey(token, clientID string) error {
	return sqlite.NewAPIKeyResolver(ts.DB).CreateKey(context.Background(), transport.HashToken(token), clientID, "test")
}

// SetAvailable toggles whether the server answers requests. While
// unavailable every request gets 503.
func (ts *TestServer) SetAvailable(up bool) {
	ts.down.Store(!up)
}

// URL is the base URL to hand to remote.NewClient.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// Client returns a remote client authenticated with the server's token.
func (ts *TestServer) Client() *remote.Client {
	return remote.NewClient(ts.Server.URL, remote.ClientOptions{APIKey: ts.Token}, nil)
}
