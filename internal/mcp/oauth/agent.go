package oauth

import (
	"context"
	"fmt"
)

// NewSessionID mints an identifier for a browser-agent polling session
func NewSessionID() (string, error) {
	return generateSecureToken(SessionIDLength)
}

// Enabled reports whether Google OAuth mediation is configured
func (h *Handler) Enabled() bool {
	return h.googleConfig != nil
}

// ExchangeCode exchanges a Google authorization code with the server's
// upstream credentials and returns the normalized token data. Used by
// the MCP tools that complete the flow on behalf of an agent.
func (h *Handler) ExchangeCode(ctx context.Context, code string) (map[string]any, error) {
	if h.googleConfig == nil {
		return nil, fmt.Errorf("OAuth mediation not configured")
	}

	tokenData, err := h.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	h.normalizeScope(tokenData)
	return tokenData, nil
}
