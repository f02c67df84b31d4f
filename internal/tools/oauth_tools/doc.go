// Package oauth_tools provides MCP (Model Context Protocol) tools that
// drive the browser-agent OAuth flow.
//
// The flow has four steps, each a tool:
//   - get_oauth_url: Mint a session-bound Google authorization URL
//   - check_oauth_status: Peek at the session without consuming it
//   - poll_oauth_code: Pick up the authorization code (delivered once)
//   - exchange_oauth_code: Exchange the code and store the credential
//
// The session store behind these tools is the same one used by the HTTP
// polling endpoints, so an agent may mix tool calls and HTTP polling for
// the same session.
package oauth_tools
