package oauth_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/talentops/lever-mcp/internal/mcp/oauth"
	"github.com/talentops/lever-mcp/internal/server"
	"github.com/talentops/lever-mcp/internal/tools/common"
)

// RegisterOAuthTools registers the browser-agent OAuth flow tools with
// the MCP server. These tools let an agent drive the Google consent
// flow through a browser it controls: mint a session-bound URL, watch
// for completion, pick up the authorization code, and exchange it.
func RegisterOAuthTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Get OAuth URL tool
	getOAuthURLTool := mcp.NewTool("get_oauth_url",
		mcp.WithDescription("Start a Google OAuth flow for browser-based authentication. Returns an authorization URL to open in a browser and a session ID for polling the result."),
		mcp.WithString("user_id",
			mcp.Description("User to associate the credential with (default: 'default')"),
		),
	)

	s.AddTool(getOAuthURLTool, common.InstrumentedToolHandler(
		"get_oauth_url", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetOAuthURL(ctx, request, sc)
		}))

	// Check OAuth status tool
	checkOAuthStatusTool := mcp.NewTool("check_oauth_status",
		mcp.WithDescription("Check whether an OAuth session has completed, without consuming the authorization code"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID returned by get_oauth_url"),
		),
	)

	s.AddTool(checkOAuthStatusTool, common.InstrumentedToolHandler(
		"check_oauth_status", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckOAuthStatus(ctx, request, sc)
		}))

	// Poll OAuth code tool
	pollOAuthCodeTool := mcp.NewTool("poll_oauth_code",
		mcp.WithDescription("Retrieve the authorization code for a completed OAuth session. The code is delivered exactly once; subsequent polls report the session as pending."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session ID returned by get_oauth_url"),
		),
	)

	s.AddTool(pollOAuthCodeTool, common.InstrumentedToolHandler(
		"poll_oauth_code", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handlePollOAuthCode(ctx, request, sc)
		}))

	// Exchange OAuth code tool
	exchangeOAuthCodeTool := mcp.NewTool("exchange_oauth_code",
		mcp.WithDescription("Exchange a Google authorization code for tokens and store them for the user. After this the user can send email without passing tokens explicitly."),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("The authorization code from poll_oauth_code or the browser callback"),
		),
		mcp.WithString("user_id",
			mcp.Description("User to store the credential under (default: 'default')"),
		),
	)

	s.AddTool(exchangeOAuthCodeTool, common.InstrumentedToolHandler(
		"exchange_oauth_code", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleExchangeOAuthCode(ctx, request, sc)
		}))

	return nil
}

// oauthHandler fetches the configured OAuth mediator, or an error
// message suitable for a tool result.
func oauthHandler(sc *server.ServerContext) (*oauth.Handler, error) {
	h := sc.OAuthHandler()
	if h == nil || !h.Enabled() {
		return nil, fmt.Errorf("OAuth is not configured. Set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET and restart the server")
	}
	return h, nil
}

func handleGetOAuthURL(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	h, err := oauthHandler(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sessionID, err := oauth.NewSessionID()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create session: %v", err)), nil
	}

	baseURL := strings.TrimSuffix(h.Config().Resource, "/")
	authURL := fmt.Sprintf("%s/authorize?session_id=%s", baseURL, sessionID)

	if metrics := sc.Metrics(); metrics != nil {
		metrics.RecordOAuthSessionCreated(ctx)
	}

	response := map[string]any{
		"auth_url":   authURL,
		"session_id": sessionID,
		"expires_in": int(h.Config().SessionTTL / time.Second),
		"instructions": "Open auth_url in a browser and complete the Google sign-in. " +
			"Then call poll_oauth_code with the session_id to retrieve the authorization code, " +
			"and exchange_oauth_code to store the credential.",
	}

	data, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}

func handleCheckOAuthStatus(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	h, err := oauthHandler(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	session, err := h.Sessions().Peek(sessionID)
	switch err {
	case nil:
		return mcp.NewToolResultText(fmt.Sprintf(
			"Status: ready\nCompleted at: %s\nCall poll_oauth_code to retrieve the authorization code.",
			time.Unix(session.CreatedAt, 0).UTC().Format(time.RFC3339))), nil
	case oauth.ErrSessionExpired:
		return mcp.NewToolResultText("Status: expired\nThe session timed out. Call get_oauth_url to start over."), nil
	default:
		return mcp.NewToolResultText("Status: pending\nThe user has not completed the sign-in yet."), nil
	}
}

func handlePollOAuthCode(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	h, err := oauthHandler(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	session, err := h.Sessions().Take(sessionID)
	switch err {
	case nil:
		response := map[string]any{
			"status": "success",
			"code":   session.Code,
		}
		data, merr := json.MarshalIndent(response, "", "  ")
		if merr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", merr)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	case oauth.ErrSessionExpired:
		return mcp.NewToolResultText(`{"status": "expired"}`), nil
	default:
		return mcp.NewToolResultText(`{"status": "pending"}`), nil
	}
}

func handleExchangeOAuthCode(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	code, ok := args["code"].(string)
	if !ok || code == "" {
		return mcp.NewToolResultError("code is required"), nil
	}

	h, err := oauthHandler(sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tokenData, err := h.ExchangeCode(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to exchange authorization code: %v", err)), nil
	}

	user := common.GetUserFromArgs(ctx, args)

	tokens := sc.TokenStore()
	if tokens == nil {
		return mcp.NewToolResultError("no token store configured"), nil
	}

	credential, err := json.Marshal(tokenData)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode credential: %v", err)), nil
	}

	if err := tokens.Set(user, string(credential)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to store credential: %v", err)), nil
	}

	// A fresh credential invalidates any cached client for the user
	sc.InvalidateGmailClient(user)

	return mcp.NewToolResultText(fmt.Sprintf(
		"Authentication successful for user %q. The credential is stored and will be refreshed automatically.", user)), nil
}
