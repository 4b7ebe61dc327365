package mcp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/prunefang/internal/mcp"
)

// testTimeout bounds each in-memory transport test.
const testTimeout = 30 * time.Second

// startSession wires a server and client over in-memory transports.
func startSession(t *testing.T, ctx context.Context) (*mcpsdk.ClientSession, chan error) {
	t.Helper()

	srv := mcp.NewServer(mcp.ServerDeps{})

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	return session, serverDone
}

func TestMCPServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	session, serverDone := startSession(t, ctx)

	defer func() {
		_ = session.Close()
	}()

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, toolsResult)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)

		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.Equal(t, []string{mcp.ToolNameReduce}, toolNames)

	cancel()
	<-serverDone
}

func TestMCPServer_InMemoryTransport_CallReduce(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	session, serverDone := startSession(t, ctx)

	defer func() {
		_ = session.Close()
	}()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: mcp.ToolNameReduce,
		Arguments: map[string]any{
			"code":         "package main\n\n// scaffolding\nfunc main() {\n\tprintln(\"boom\")\n}\n",
			"language":     "go",
			"test_command": []string{"grep", "-q", "boom"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "boom")

	cancel()
	<-serverDone
}

func TestMCPServer_InMemoryTransport_CallReduce_EmptyCode(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	session, serverDone := startSession(t, ctx)

	defer func() {
		_ = session.Close()
	}()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: mcp.ToolNameReduce,
		Arguments: map[string]any{
			"code":         "",
			"language":     "go",
			"test_command": []string{"true"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	cancel()
	<-serverDone
}

func TestMCPServer_InMemoryTransport_CallReduce_BoringInput(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	session, serverDone := startSession(t, ctx)

	defer func() {
		_ = session.Close()
	}()

	// The input itself fails the test command, so nothing can be reduced.
	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: mcp.ToolNameReduce,
		Arguments: map[string]any{
			"code":         "package main\n",
			"language":     "go",
			"test_command": []string{"false"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "not interesting")

	cancel()
	<-serverDone
}

func TestMCPServer_InMemoryTransport_CallReduce_MissingTest(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	session, serverDone := startSession(t, ctx)

	defer func() {
		_ = session.Close()
	}()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: mcp.ToolNameReduce,
		Arguments: map[string]any{
			"code":     "package main\n",
			"language": "go",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	cancel()
	<-serverDone
}
