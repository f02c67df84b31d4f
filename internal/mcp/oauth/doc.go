// Package oauth implements the OAuth mediation layer between MCP
// clients and Google's OAuth endpoints.
//
// It provides:
//   - Dynamic Client Registration (RFC 7591) with a persistent client
//     registry whose secrets are stored only as bcrypt hashes
//   - The /authorize, /token and /oauth/callback endpoints that proxy
//     the Authorization Code flow to Google using the server's own
//     upstream credentials
//   - A browser-agent polling adapter for agent runtimes that cannot
//     handle interactive redirects (destructive poll, non-destructive
//     status, 10-minute TTL)
//   - Discovery metadata (RFC 8414 and RFC 9728)
//
// Callback routing is driven by a CallbackIntent encoded into the
// state parameter: browser-agent sessions, dynamic clients, and legacy
// static clients all round-trip through Google with the same upstream
// credentials but are routed differently on return.
package oauth
