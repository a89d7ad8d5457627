package integration_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

// TestStdioProtocolCompliance verifies the server works correctly over stdio transport
// using the official MCP SDK client. This catches protocol issues that shell-based
// tests might miss.
func TestStdioProtocolCompliance(t *testing.T) {
	binaryPath := findBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Create command with environment
	cmd := serverCommand(ctx, t, binaryPath)

	// Spawn server as subprocess using SDK's CommandTransport
	transport := &sdkmcp.CommandTransport{
		Command: cmd,
	}

	// Create client
	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	// Connect and initialize
	session, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err, "Failed to connect to server")
	defer session.Close()

	// Verify initialize response
	t.Run("ServerInfo", func(t *testing.T) {
		initResult := session.InitializeResult()
		require.NotNil(t, initResult)
		require.NotNil(t, initResult.ServerInfo)
		require.Equal(t, "gradcredits", initResult.ServerInfo.Name)
		require.NotEmpty(t, initResult.ServerInfo.Version)
	})

	// Test tools/list
	t.Run("ListTools", func(t *testing.T) {
		tools, err := session.ListTools(ctx, nil)
		require.NoError(t, err, "tools/list failed")
		require.Len(t, tools.Tools, 17)

		// Verify expected core tools exist
		toolNames := make(map[string]bool)
		for _, tool := range tools.Tools {
			toolNames[tool.Name] = true
		}

		expectedTools := []string{
			"list_terms",
			"add_credit",
			"list_credits",
			"get_progress",
			"get_account",
			"sign_out",
		}
		for _, name := range expectedTools {
			require.True(t, toolNames[name], "Missing expected tool: %s", name)
		}
	})

	t.Run("AddAndProgress", func(t *testing.T) {
		result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
			Name:      "add_credit",
			Arguments: map[string]any{"term": "1-1", "bucket": "LIBERAL", "credits": 3},
		})
		require.NoError(t, err)
		require.False(t, result.IsError, "add_credit returned error: %v", result)

		result, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "get_progress"})
		require.NoError(t, err)
		require.False(t, result.IsError)
		text, ok := result.Content[0].(*sdkmcp.TextContent)
		require.True(t, ok)
		require.Contains(t, text.Text, `"graduation"`)
	})

	t.Run("AccountIsLocalOnly", func(t *testing.T) {
		result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "begin_sign_in"})
		require.NoError(t, err)
		require.True(t, result.IsError)
		text, ok := result.Content[0].(*sdkmcp.TextContent)
		require.True(t, ok)
		require.Contains(t, text.Text, "SIGN_IN_UNAVAILABLE")
	})
}

// TestStdioProtocol_StdoutHygiene checks that the first bytes on stdout are
// the initialize response, so startup logs cannot corrupt the stream.
func TestStdioProtocol_StdoutHygiene(t *testing.T) {
	binaryPath := findBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := serverCommand(ctx, t, binaryPath)
	cmd.Env = append(cmd.Env, "GRADCREDITS_LOG_LEVEL=debug")

	stdin, err := cmd.StdinPipe()
	require.NoError(t, err)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	initReq := `{"jsonrpc":"2.0","method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"1.0"}},"id":1}`
	_, err = io.WriteString(stdin, initReq+"\n")
	require.NoError(t, err)

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(stdout).ReadString('\n')
		lines <- line
	}()

	var line string
	select {
	case line = <-lines:
	case <-ctx.Done():
		t.Fatal("timeout waiting for initialize response")
	}

	var resp struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      int             `json:"id"`
		Result  json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(line), &resp), "stdout line is not JSON-RPC: %q", line)
	require.Equal(t, "2.0", resp.JSONRPC)
	require.Equal(t, 1, resp.ID)
	require.Contains(t, string(resp.Result), "gradcredits")
}

// findBinary locates the built server, skipping the test when it is absent.
func findBinary(t *testing.T) string {
	t.Helper()
	for _, p := range []string{"./bin/gradcredits", "../../bin/gradcredits"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	t.Skip("Server binary not found. Run 'go build -o bin/gradcredits ./cmd/gradcredits' first.")
	return ""
}

func serverCommand(ctx context.Context, t *testing.T, binaryPath string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, binaryPath, "serve")
	cmd.Env = append(os.Environ(),
		"GRADCREDITS_ENV_FILE="+filepath.Join(t.TempDir(), "none.env"),
		"GRADCREDITS_TRANSPORT_MODE=stdio",
		"GRADCREDITS_DB_PATH=:memory:",
		"GRADCREDITS_REMOTE_URL=",
	)
	return cmd
}
