// Package google manages Google OAuth credentials for users of the MCP
// server. Tokens obtained through the mediation flow are persisted per
// user and refreshed transparently when they expire.
package google
