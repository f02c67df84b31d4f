// Package email_tools provides MCP (Model Context Protocol) tools for
// sending themed HTML emails through Gmail.
//
// Tools:
//   - send_themed_email: Render a theme and send it through the Gmail API
//   - generate_email_content: Render a theme without sending, for preview
//   - list_email_themes: List the available themes with their subjects
//
// A send resolves its Gmail client in priority order: an explicit
// access_token argument (on-behalf-of, never persisted), the bearer token
// validated by the OAuth middleware on HTTP transports, and finally the
// stored credential for the requested user_id.
package email_tools
