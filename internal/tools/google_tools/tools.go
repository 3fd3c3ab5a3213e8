package google_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/calm-cli/calm/internal/google"
	"github.com/calm-cli/calm/internal/server"
)

// RegisterGoogleTools registers the OAuth tools with the MCP server.
func RegisterGoogleTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	statusTool := mcp.NewTool("google_auth_status",
		mcp.WithDescription("Report whether a Google OAuth client is imported, a token is saved and the calendar is reachable"),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(statusTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleAuthStatus(ctx, request, sc)
	})

	getAuthURLTool := mcp.NewTool("google_get_auth_url",
		mcp.WithDescription("Get the OAuth URL to authorize Google Calendar access"),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	s.AddTool(getAuthURLTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetAuthURL(ctx, request, sc)
	})

	saveAuthCodeTool := mcp.NewTool("google_save_auth_code",
		mcp.WithDescription("Save the OAuth authorization code to complete Google Calendar authorization"),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("authCode",
			mcp.Required(),
			mcp.Description("The authorization code, or the whole http://localhost/?code=... URL the browser was sent to"),
		),
	)
	s.AddTool(saveAuthCodeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSaveAuthCode(ctx, request, sc)
	})

	return nil
}

type authStatus struct {
	ClientImported bool   `json:"client_imported"`
	TokenSaved     bool   `json:"token_saved"`
	CalendarReady  bool   `json:"calendar_ready"`
	Next           string `json:"next,omitempty"`
}

func handleAuthStatus(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	cfg := sc.Config()
	status := authStatus{
		ClientImported: google.HasClient(cfg),
		TokenSaved:     google.HasToken(cfg),
		CalendarReady:  sc.CalendarReady(),
	}
	switch {
	case !status.ClientImported:
		status.Next = "Run `calm configure oauth --path credentials.json` in a terminal to import a Desktop OAuth client."
	case !status.TokenSaved:
		status.Next = "Call google_get_auth_url."
	}

	raw, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth status: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func handleGetAuthURL(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	authURL, err := google.ManualAuthURL(sc.Config())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf(`To authorize Google Calendar access:

1. Visit this URL in your browser:
   %s

2. Sign in with your Google account and grant access
3. The browser ends on a page that fails to load; copy its address
   (or just the code parameter)

4. Call the google_save_auth_code tool with it to complete authorization`, authURL)

	return mcp.NewToolResultText(result), nil
}

func handleSaveAuthCode(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	authCode := request.GetString("authCode", "")
	if authCode == "" {
		return mcp.NewToolResultError("authCode is required"), nil
	}

	if err := google.SaveAuthCode(ctx, sc.Config(), authCode); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save authorization code: %v", err)), nil
	}

	return mcp.NewToolResultText("✅ Authorization successful! The token is saved and the calendar tools can be used now."), nil
}
