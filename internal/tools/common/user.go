package common

import (
	"context"

	"github.com/talentops/lever-mcp/internal/mcp/oauth"
)

// GetUserFromArgs resolves the acting user for a tool call.
//
// Priority order:
//  1. OAuth user email from context (set by the OAuth middleware)
//  2. Explicit "user_id" argument in the request
//  3. "default"
func GetUserFromArgs(ctx context.Context, args map[string]interface{}) string {
	// The OAuth middleware stores the validated Google identity in the
	// request context on HTTP transports
	if userInfo, ok := oauth.GetUserFromContext(ctx); ok && userInfo != nil && userInfo.Email != "" {
		return userInfo.Email
	}

	if userVal, ok := args["user_id"].(string); ok && userVal != "" {
		return userVal
	}
	return "default"
}
