package email_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/talentops/lever-mcp/internal/gmail"
	"github.com/talentops/lever-mcp/internal/mcp/oauth"
	"github.com/talentops/lever-mcp/internal/server"
	"github.com/talentops/lever-mcp/internal/tools/common"
)

// RegisterEmailTools registers themed email tools with the MCP server
func RegisterEmailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Send themed email tool
	sendThemedEmailTool := mcp.NewTool("send_themed_email",
		mcp.WithDescription("Send a themed HTML email through Gmail. The theme provides the subject and decorated body; personalization parameters fill in names and a custom message."),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address(es), comma-separated for multiple recipients"),
		),
		mcp.WithString("theme",
			mcp.Required(),
			mcp.Description("Email theme: birthday, pirate, space, medieval, superhero, or tropical"),
		),
		mcp.WithString("subject",
			mcp.Description("Override the theme's default subject"),
		),
		mcp.WithString("cc",
			mcp.Description("CC email address(es), comma-separated"),
		),
		mcp.WithString("bcc",
			mcp.Description("BCC email address(es), comma-separated"),
		),
		mcp.WithString("recipient_name",
			mcp.Description("Name used in the greeting"),
		),
		mcp.WithString("sender_name",
			mcp.Description("Name used in the sign-off"),
		),
		mcp.WithString("message",
			mcp.Description("Personal message woven into the themed body"),
		),
		mcp.WithString("access_token",
			mcp.Description("Send on behalf of this Google access token instead of a stored credential"),
		),
		mcp.WithString("user_id",
			mcp.Description("User whose stored credential to use (default: 'default')"),
		),
	)

	s.AddTool(sendThemedEmailTool, common.InstrumentedToolHandlerWithService(
		"send_themed_email", "gmail", "send", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendThemedEmail(ctx, request, sc)
		}))

	// Generate email content tool
	generateEmailContentTool := mcp.NewTool("generate_email_content",
		mcp.WithDescription("Render a themed email without sending it. Returns the subject and HTML body so they can be previewed or sent through another channel."),
		mcp.WithString("theme",
			mcp.Required(),
			mcp.Description("Email theme: birthday, pirate, space, medieval, superhero, or tropical"),
		),
		mcp.WithString("recipient_name",
			mcp.Description("Name used in the greeting"),
		),
		mcp.WithString("sender_name",
			mcp.Description("Name used in the sign-off"),
		),
		mcp.WithString("message",
			mcp.Description("Personal message woven into the themed body"),
		),
	)

	s.AddTool(generateEmailContentTool, common.InstrumentedToolHandler(
		"generate_email_content", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGenerateEmailContent(ctx, request, sc)
		}))

	// List themes tool
	listThemesTool := mcp.NewTool("list_email_themes",
		mcp.WithDescription("List the available email themes"),
	)

	s.AddTool(listThemesTool, common.InstrumentedToolHandler(
		"list_email_themes", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEmailThemes(ctx, request, sc)
		}))

	return nil
}

func handleSendThemedEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	toStr, ok := args["to"].(string)
	if !ok || toStr == "" {
		return mcp.NewToolResultError("to is required"), nil
	}

	themeName, ok := args["theme"].(string)
	if !ok || themeName == "" {
		return mcp.NewToolResultError("theme is required"), nil
	}

	recipientName := stringArg(args, "recipient_name")
	senderName := stringArg(args, "sender_name")
	message := stringArg(args, "message")

	subject, body, err := gmail.RenderTheme(themeName, recipientName, senderName, message)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if override := stringArg(args, "subject"); override != "" {
		subject = override
	}

	client, err := resolveGmailClient(ctx, args, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	msg := &gmail.EmailMessage{
		To:      splitEmailAddresses(toStr),
		Cc:      splitEmailAddresses(stringArg(args, "cc")),
		Bcc:     splitEmailAddresses(stringArg(args, "bcc")),
		Subject: subject,
		Body:    body,
		IsHTML:  true,
	}

	messageID, err := client.SendEmail(msg)

	if metrics := sc.Metrics(); metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.RecordEmailSend(ctx, strings.ToLower(themeName), status)
	}

	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send email: %v", err)), nil
	}

	result := fmt.Sprintf("Themed email sent!\nMessage ID: %s\nTo: %s\nTheme: %s\nSubject: %s",
		messageID, strings.Join(msg.To, ", "), strings.ToLower(themeName), subject)

	return mcp.NewToolResultText(result), nil
}

func handleGenerateEmailContent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	themeName, ok := args["theme"].(string)
	if !ok || themeName == "" {
		return mcp.NewToolResultError("theme is required"), nil
	}

	subject, body, err := gmail.RenderTheme(themeName,
		stringArg(args, "recipient_name"),
		stringArg(args, "sender_name"),
		stringArg(args, "message"),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	content := map[string]any{
		"theme":            strings.ToLower(themeName),
		"subject":          subject,
		"body":             body,
		"is_html":          true,
		"available_themes": gmail.ListThemes(),
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal content: %v", err)), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}

func handleListEmailThemes(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	themes := gmail.ListThemes()

	var sb strings.Builder
	sb.WriteString("Available email themes:\n")
	for _, name := range themes {
		subject, err := gmail.ThemeSubject(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", name, subject)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// resolveGmailClient picks the Gmail client for a send request.
//
// Priority order:
//  1. An explicit access_token argument (on-behalf-of, nothing persisted)
//  2. The bearer token validated by the OAuth middleware
//  3. The stored credential for the resolved user ID
func resolveGmailClient(ctx context.Context, args map[string]interface{}, sc *server.ServerContext) (*gmail.Client, error) {
	if accessToken := stringArg(args, "access_token"); accessToken != "" {
		return sc.GmailClientForToken(ctx, accessToken)
	}

	if token, ok := oauth.GetGoogleTokenFromContext(ctx); ok && token != nil && token.AccessToken != "" {
		return sc.GmailClientForToken(ctx, token.AccessToken)
	}

	user := common.GetUserFromArgs(ctx, args)
	return sc.GmailClientForUser(user)
}

func stringArg(args map[string]interface{}, key string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return ""
}

// splitEmailAddresses splits a comma-separated string of email addresses
func splitEmailAddresses(addresses string) []string {
	if addresses == "" {
		return nil
	}

	parts := strings.Split(addresses, ",")
	result := make([]string, 0, len(parts))
	for _, addr := range parts {
		trimmed := strings.TrimSpace(addr)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
