// Package server provides the MCP server context and the OAuth-enabled
// HTTP server for the Lever MCP application.
//
// ServerContext manages shared dependencies: the OAuth mediator, the
// per-user Google token store, the Lever API client, and lazily built
// Gmail clients cached per user.
//
// OAuthHTTPServer composes the MCP endpoint with the OAuth mediation
// surface on one listener:
//   - Authorization Server Metadata (RFC 8414)
//   - Protected Resource Metadata (RFC 9728)
//   - Dynamic Client Registration (RFC 7591)
//   - Authorization Code flow proxied to Google
//   - Browser-agent polling adapter (/oauth/poll, /oauth/status)
//
// The MCP endpoint itself is protected per request: agents carry their
// own Google access token, which the server validates against Google's
// userinfo endpoint without persisting anything.
//
// Security defaults: HTTPS required outside loopback, per-IP rate
// limiting, security headers on all OAuth responses, and a dedicated
// metrics listener so operational data stays off the public port.
package server
