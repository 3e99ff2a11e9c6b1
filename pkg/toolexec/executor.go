// SPDX-License-Identifier: Apache-2.0

package toolexec

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/telos-ai/telos/pkg/core"
	"github.com/telos-ai/telos/pkg/errors"
)

// HandlerExecutor runs each proposed call through the request's action
// handler. It is the default executor when no tool server is configured.
type HandlerExecutor struct{}

// NewHandlerExecutor returns an executor backed by per-request handlers.
func NewHandlerExecutor() *HandlerExecutor {
	return &HandlerExecutor{}
}

// Execute invokes the handler with the call's tool and params. A handler
// error becomes a failed result, not an execution error, so that one bad
// step never takes down the whole run.
func (e *HandlerExecutor) Execute(ctx context.Context, call core.ProposedCall, handler core.ActionHandler) (core.PipelineResult, error) {
	result := core.PipelineResult{
		Tool:      call.Tool,
		RequestID: call.RequestID,
	}
	if handler == nil {
		return result, errors.New(errors.CodeInvalidInput, "no action handler provided for call "+call.RequestID, nil)
	}

	start := time.Now()
	out, err := handler(ctx, call.Tool, call.Params)
	result.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.Success = true
	result.Result = out
	return result, nil
}

// Caller is the slice of the MCP client the executor needs.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// MCPExecutor performs proposed calls against an MCP tool server. The
// action handler on the request is ignored; the tool server is the
// capability.
type MCPExecutor struct {
	caller Caller
}

// NewMCPExecutor returns an executor backed by the given tool caller.
func NewMCPExecutor(caller Caller) (*MCPExecutor, error) {
	if caller == nil {
		return nil, errors.New(errors.CodeInvalidInput, "tool caller is required", nil)
	}
	return &MCPExecutor{caller: caller}, nil
}

// Execute calls the named tool on the server. A tool-level error
// (IsError on the MCP result) becomes a failed result; a transport
// error is returned as-is so the caller's retry policy can take over.
func (e *MCPExecutor) Execute(ctx context.Context, call core.ProposedCall, _ core.ActionHandler) (core.PipelineResult, error) {
	result := core.PipelineResult{
		Tool:      call.Tool,
		RequestID: call.RequestID,
	}

	args, err := normalizeToolArgs(call.Params)
	if err != nil {
		return result, errors.New(errors.CodeInvalidInput, "invalid params for tool "+call.Tool, err)
	}

	start := time.Now()
	toolResult, err := e.caller.CallTool(ctx, call.Tool, args)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		return result, errors.New(errors.CodeToolError, "tool call failed: "+call.Tool, err)
	}

	if toolResult.IsError {
		result.Error = extractTextContent(toolResult)
		if result.Error == "" {
			result.Error = "tool " + call.Tool + " reported an error"
		}
		return result, nil
	}

	result.Success = true
	result.Result = toolResultToOutput(toolResult)
	return result, nil
}

// normalizeToolArgs coerces the step params into the map shape the MCP
// transport expects. JSON-encoded payloads are decoded rather than nested.
func normalizeToolArgs(params map[string]any) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	args := make(map[string]any, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case json.RawMessage:
			var decoded any
			if err := json.Unmarshal(v, &decoded); err != nil {
				return nil, err
			}
			args[key] = decoded
		case []byte:
			var decoded any
			if err := json.Unmarshal(v, &decoded); err != nil {
				args[key] = string(v)
			} else {
				args[key] = decoded
			}
		default:
			args[key] = value
		}
	}
	return args, nil
}

func toolResultToOutput(res *mcp.CallToolResult) any {
	if res == nil {
		return nil
	}
	if res.StructuredContent != nil {
		return res.StructuredContent
	}
	if text := extractTextContent(res); text != "" {
		return text
	}
	return nil
}

func extractTextContent(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, item := range res.Content {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
