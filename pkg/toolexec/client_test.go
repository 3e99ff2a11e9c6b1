// SPDX-License-Identifier: Apache-2.0

package toolexec

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func TestClientStreamableHTTPCallTool(t *testing.T) {
	server := mcpserver.NewMCPServer("test-http", "1.0.0")
	server.AddTool(mcp.NewTool("ping"), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "pong"}},
		}, nil
	})

	httpServer := mcpserver.NewTestStreamableHTTPServer(server)
	defer httpServer.Close()

	client, err := NewClientWithStreamableHTTP(httpServer.URL)
	if err != nil {
		t.Fatalf("NewClientWithStreamableHTTP error: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(tools) == 0 || tools[0].Name != "ping" {
		t.Fatalf("expected tool 'ping', got %+v", tools)
	}

	result, err := client.CallTool(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	if got := extractTextContent(result); got != "pong" {
		t.Fatalf("expected 'pong', got %q", got)
	}
}

// flakyMCP fails the first N list calls, then succeeds.
type flakyMCP struct {
	mu        sync.Mutex
	failures  int
	listCalls int
}

func (f *flakyMCP) Initialize(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (f *flakyMCP) CallTool(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}

func (f *flakyMCP) Close() error { return nil }

func (f *flakyMCP) ListTools(ctx context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.listCalls <= f.failures {
		return nil, errors.New("transient network error")
	}
	return &mcp.ListToolsResult{Tools: []mcp.Tool{{Name: "echo"}}}, nil
}

func TestClientRetriesTransientFailures(t *testing.T) {
	flaky := &flakyMCP{failures: 2}
	client := NewClient(flaky, WithRetry(2, time.Millisecond), WithToolCacheTTL(0))

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
	if flaky.listCalls != 3 {
		t.Errorf("expected 3 attempts, got %d", flaky.listCalls)
	}
}

func TestClientRetryExhaustionReturnsLastError(t *testing.T) {
	flaky := &flakyMCP{failures: 10}
	client := NewClient(flaky, WithRetry(1, time.Millisecond), WithToolCacheTTL(0))

	if _, err := client.ListTools(context.Background()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if flaky.listCalls != 2 {
		t.Errorf("expected 2 attempts, got %d", flaky.listCalls)
	}
}

func TestClientToolCacheSkipsServer(t *testing.T) {
	flaky := &flakyMCP{}
	client := NewClient(flaky, WithToolCacheTTL(time.Minute))

	if _, err := client.ListTools(context.Background()); err != nil {
		t.Fatalf("first ListTools error: %v", err)
	}
	if _, err := client.ListTools(context.Background()); err != nil {
		t.Fatalf("second ListTools error: %v", err)
	}
	if flaky.listCalls != 1 {
		t.Errorf("expected cached second call, server saw %d", flaky.listCalls)
	}
}

// slowThenFastMCP blocks until the per-call context expires on the first
// N list calls, then answers immediately.
type slowThenFastMCP struct {
	mu        sync.Mutex
	slowCalls int
	listCalls int
}

func (s *slowThenFastMCP) Initialize(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	return &mcp.InitializeResult{}, nil
}

func (s *slowThenFastMCP) CallTool(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}

func (s *slowThenFastMCP) Close() error { return nil }

func (s *slowThenFastMCP) ListTools(ctx context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	s.mu.Lock()
	s.listCalls++
	call := s.listCalls
	s.mu.Unlock()
	if call <= s.slowCalls {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &mcp.ListToolsResult{Tools: []mcp.Tool{{Name: "echo"}}}, nil
}

func TestClientRetriesPerAttemptTimeout(t *testing.T) {
	slow := &slowThenFastMCP{slowCalls: 1}
	client := NewClient(slow,
		WithTimeout(10*time.Millisecond),
		WithRetry(1, time.Millisecond),
		WithToolCacheTTL(0))

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("expected a retry after the attempt timeout, got %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
	if slow.listCalls != 2 {
		t.Errorf("expected 2 attempts, got %d", slow.listCalls)
	}
}

func TestClientCancelledContextSkipsRetries(t *testing.T) {
	flaky := &flakyMCP{failures: 10}
	client := NewClient(flaky, WithRetry(5, time.Millisecond), WithToolCacheTTL(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.ListTools(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if flaky.listCalls > 1 {
		t.Errorf("cancelled context must not be retried, saw %d attempts", flaky.listCalls)
	}
}
