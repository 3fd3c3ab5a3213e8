package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calm-cli/calm/internal/server"
	"github.com/calm-cli/calm/internal/tools/catalog"
	"github.com/calm-cli/calm/internal/tools/executor"
)

// RegisterCalendarTools registers the calendar tools with the MCP server.
// In read-only mode only tools annotated as read-only are exposed.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	for _, tool := range catalog.Tools() {
		if readOnly && !isReadOnly(tool) {
			continue
		}
		s.AddTool(tool, newHandler(tool.Name, sc))
	}
	return nil
}

func isReadOnly(tool mcp.Tool) bool {
	hint := tool.Annotations.ReadOnlyHint
	return hint != nil && *hint
}

// newHandler routes one tool through the shared executor. The result text is
// the same JSON envelope the agent sees; failures set isError.
func newHandler(name string, sc *server.ServerContext) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ex, err := sc.Executor()
		if err != nil {
			return toolResult(executor.Result{Name: name, Err: err})
		}
		return toolResult(ex.Execute(ctx, name, request.GetArguments()))
	}
}

func toolResult(res executor.Result) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s result: %w", res.Name, err)
	}
	if !res.OK {
		return mcp.NewToolResultError(string(raw)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
