package mcp

import (
	"context"
	"encoding/json"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, cfg Config) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := NewServer(cfg)

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

func testConfig(t *testing.T) Config {
	return Config{
		Services: Services{
			Tracker:  newTracker(t),
			Accounts: &accountStub{account: reconcile.Account{State: identity.StateAnonymous}},
			Activity: activityStub{},
		},
		TransportMode: "stdio",
	}
}

func textOf(t *testing.T, res *sdkmcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestServer_ListTools(t *testing.T) {
	cs := connect(t, testConfig(t))

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
		require.NotNil(t, tool.InputSchema, "tool %s should have inputSchema", tool.Name)
	}
	for _, def := range buildToolCatalog() {
		require.True(t, names[def.Name], "missing tool %s", def.Name)
	}
	require.Len(t, res.Tools, 17)
}

func TestServer_CallTool(t *testing.T) {
	cs := connect(t, testConfig(t))
	ctx := context.Background()

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "add_credit",
		Arguments: map[string]any{"term": "1-1", "bucket": "LIBERAL", "credits": 3},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))

	res, err = cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: "get_progress"})
	require.NoError(t, err)
	var progress ProgressResponse
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &progress))
	require.Equal(t, 3.0, progress.Totals.Liberal)
	require.Equal(t, 1, progress.EntryCount)
}

func TestServer_ToolErrorCarriesRecoveryHint(t *testing.T) {
	cs := connect(t, testConfig(t))

	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "add_credit",
		Arguments: map[string]any{"term": "7-1", "bucket": "LIBERAL", "credits": 3},
	})
	require.NoError(t, err)
	require.True(t, res.IsError)

	var apiErr APIError
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &apiErr))
	require.Equal(t, "UNKNOWN_TERM", apiErr.Code)
	require.NotEmpty(t, apiErr.RecoveryHint)
}

func TestServer_DocResources(t *testing.T) {
	cs := connect(t, testConfig(t))
	ctx := context.Background()

	list, err := cs.ListResources(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list.Resources, len(docResources))

	res, err := cs.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "gradcredits://docs/requirements"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "Graduation")
}

func TestToolCatalog_TermSchemaMatchesValidator(t *testing.T) {
	seen := 0
	for _, tool := range buildToolCatalog() {
		props := tool.InputSchema["properties"].(map[string]any)
		term, ok := props["term"].(map[string]any)
		if !ok {
			continue
		}
		seen++
		require.Equal(t, credit.TermPattern, term["pattern"], tool.Name)
	}
	require.Equal(t, 5, seen)
}
