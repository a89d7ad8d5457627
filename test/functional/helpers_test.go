package functional_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
	"github.com/rpggio/gradcredits/internal/mcp"
	"github.com/rpggio/gradcredits/internal/repository/mocks"
	"github.com/rpggio/gradcredits/internal/sqlite"
	"github.com/rpggio/gradcredits/internal/testserver"
	"github.com/rpggio/gradcredits/migrations"
	"github.com/stretchr/testify/require"
)

// stack is a tracker wired exactly as the serve command wires it, backed by
// an in-memory database and a live store server.
type stack struct {
	store      *testserver.TestServer
	provider   *mocks.IdentityProvider
	tracker    *tracker.Service
	reconciler *reconcile.Reconciler
	services   mcp.Services
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s_local?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(migrations.Local))
	t.Cleanup(func() { _ = db.Close() })

	ts := testserver.New(t, "store-key", "laptop")

	docs := sqlite.NewDocumentStore(db)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil, nil)
	trk := tracker.NewService(docs, tracker.Options{Journal: activitySvc}, nil)
	require.NoError(t, trk.Load(ctx))

	provider := &mocks.IdentityProvider{}
	rec := reconcile.New(provider, docs, ts.Client(), trk, reconcile.Options{
		RevokeTimeout: time.Second,
		Journal:       activitySvc,
	}, nil)
	trk.SetSyncer(rec)
	t.Cleanup(rec.Close)

	return &stack{
		store:      ts,
		provider:   provider,
		tracker:    trk,
		reconciler: rec,
		services: mcp.Services{
			Tracker:  trk,
			Accounts: rec,
			Activity: activitySvc,
		},
	}
}

// connectInMemory opens an MCP client session over in-memory transports.
func connectInMemory(t *testing.T, server *sdkmcp.Server) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

// call invokes a tool and returns its text payload and error flag.
func call(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "tools/call %s", name)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

// callOK invokes a tool, requires success and decodes the payload into out.
func callOK(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any, out any) {
	t.Helper()
	text, isErr := call(t, cs, name, args)
	require.False(t, isErr, "%s returned error: %s", name, text)
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(text), out))
	}
}

// callErr invokes a tool and returns the error code it reported.
func callErr(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) mcp.APIError {
	t.Helper()
	text, isErr := call(t, cs, name, args)
	require.True(t, isErr, "%s should fail, got: %s", name, text)
	var apiErr mcp.APIError
	require.NoError(t, json.Unmarshal([]byte(text), &apiErr))
	return apiErr
}
