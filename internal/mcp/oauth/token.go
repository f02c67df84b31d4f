package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ServeToken handles POST /token (form-encoded).
//
// For authorization_code grants the endpoint branches on whether the
// code matches a server-minted DCR session: if so, the stored Google
// token is released to the authenticated dynamic client; otherwise the
// code is exchanged with Google directly using the server's upstream
// credentials. Either way the scope field is normalized before the
// response leaves the server.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeOAuthError(w, ErrInvalidRequest("Failed to parse request"))
		return
	}

	grantType := r.FormValue("grant_type")
	switch grantType {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r)
	case "refresh_token":
		h.handleRefreshTokenGrant(w, r)
	default:
		h.writeOAuthError(w, ErrUnsupportedGrantType(fmt.Sprintf("Grant type %q not supported", grantType)))
	}
}

func (h *Handler) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request) {
	code := r.FormValue("code")
	if code == "" {
		h.writeOAuthError(w, ErrInvalidRequest("code is required"))
		return
	}

	// A code matching a stored DCR session takes the DCR branch. Peek
	// first so a failed client authentication does not consume the
	// session; the destructive Take happens only on success.
	session, err := h.sessions.Peek(code)
	switch {
	case err == nil && session.IsDCR():
		h.handleDCRCodeExchange(w, r, code, session)
	case err == ErrSessionExpired:
		h.writeOAuthError(w, ErrInvalidGrant("authorization code expired"))
	default:
		h.handleDirectCodeExchange(w, r, code)
	}
}

// handleDCRCodeExchange releases a previously fetched Google token to
// the dynamic client that the session is bound to. The session is
// deleted on success; a code is exchanged at most once.
func (h *Handler) handleDCRCodeExchange(w http.ResponseWriter, r *http.Request, code string, session *Session) {
	clientID, clientSecret := clientCredentials(r)
	if clientID == "" || clientSecret == "" {
		h.writeOAuthError(w, ErrInvalidClient("client_id and client_secret are required"))
		return
	}

	if err := h.registry.Authenticate(clientID, clientSecret); err != nil {
		h.logger.Warn("DCR token exchange rejected: client authentication failed",
			"client_id", clientID)
		h.writeOAuthError(w, ErrInvalidClient("Client authentication failed"))
		return
	}

	if session.ClientID != clientID {
		h.logger.Warn("DCR token exchange rejected: code issued to different client",
			"client_id", clientID)
		h.writeOAuthError(w, ErrInvalidGrant("authorization code was not issued to this client"))
		return
	}

	// Consume the session. A concurrent exchange may have won the race
	// between Peek and Take; the loser gets invalid_grant.
	consumed, err := h.sessions.Take(code)
	if err != nil {
		h.writeOAuthError(w, ErrInvalidGrant("authorization code is invalid or already used"))
		return
	}

	tokenData := consumed.GoogleToken
	h.normalizeScope(tokenData)

	h.logger.Info("Released Google token to dynamic client",
		"client_id", clientID)

	h.writeTokenResponse(w, tokenData)
}

// handleDirectCodeExchange is the non-DCR branch: the code came from
// Google (browser-agent or legacy flow) and is exchanged upstream with
// the server's own credentials and fixed redirect URI.
func (h *Handler) handleDirectCodeExchange(w http.ResponseWriter, r *http.Request, code string) {
	if h.googleConfig == nil {
		h.writeOAuthError(w, ErrServerError("OAuth mediation not configured"))
		return
	}

	clientID, clientSecret := clientCredentials(r)
	if clientID != "" {
		if err := h.registry.Authenticate(clientID, clientSecret); err != nil {
			h.logger.Warn("Token exchange rejected: client authentication failed",
				"client_id", clientID)
			h.writeOAuthError(w, ErrInvalidClient("Client authentication failed"))
			return
		}

		if redirectURI := r.FormValue("redirect_uri"); redirectURI != "" {
			if err := h.registry.ValidateRedirectURI(clientID, redirectURI); err != nil {
				h.writeOAuthError(w, ErrInvalidRequest("redirect_uri not registered for this client"))
				return
			}
		}
	}

	tokenData, err := h.exchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Warn("Google code exchange failed", "error", err)
		h.writeOAuthError(w, ErrInvalidGrant("Failed to exchange authorization code"))
		return
	}

	h.normalizeScope(tokenData)

	h.logger.Info("Exchanged authorization code with Google",
		"client_id", clientID)

	h.writeTokenResponse(w, tokenData)
}

// handleRefreshTokenGrant refreshes a Google token with the server's
// upstream credentials and returns the normalized result.
func (h *Handler) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.FormValue("refresh_token")
	if refreshToken == "" {
		h.writeOAuthError(w, ErrInvalidRequest("refresh_token is required"))
		return
	}

	if h.googleConfig == nil {
		h.writeOAuthError(w, ErrServerError("OAuth mediation not configured"))
		return
	}

	if clientID, clientSecret := clientCredentials(r); clientID != "" {
		if err := h.registry.Authenticate(clientID, clientSecret); err != nil {
			h.writeOAuthError(w, ErrInvalidClient("Client authentication failed"))
			return
		}
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, h.httpClient)
	ts := h.googleConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := ts.Token()
	if err != nil {
		h.logger.Warn("Google token refresh failed", "error", err)
		h.writeOAuthError(w, ErrInvalidGrant("Token refresh failed. Please re-authenticate."))
		return
	}

	tokenData := map[string]any{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
	}
	if token.RefreshToken != "" {
		tokenData["refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		tokenData["expires_in"] = int64(time.Until(token.Expiry).Seconds())
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		tokenData["scope"] = scope
	}

	h.normalizeScope(tokenData)
	h.writeTokenResponse(w, tokenData)
}

// normalizeScope rewrites the scope of a token response when Google
// granted more than was requested (common for Workspace accounts).
// Scope-strict clients reject tokens whose scope differs from their
// request, so the response advertises exactly the requested set while
// the true grant is preserved under _original_scope. The token itself
// keeps its real grant at Google.
func (h *Handler) normalizeScope(tokenData map[string]any) {
	granted, ok := tokenData["scope"].(string)
	if !ok || granted == "" {
		return
	}

	requested := h.config.SupportedScopes
	grantedSet := scopeSet(granted)
	requestedSet := make(map[string]bool, len(requested))
	for _, s := range requested {
		requestedSet[s] = true
	}

	var extra []string
	for s := range grantedSet {
		if !requestedSet[s] {
			extra = append(extra, s)
		}
	}
	if len(extra) == 0 {
		return
	}
	sort.Strings(extra)

	tokenData["scope"] = strings.Join(requested, " ")
	tokenData["_original_scope"] = granted
	tokenData["_scope_note"] = fmt.Sprintf(
		"Google granted additional scopes beyond the request: %s. The token retains its full grant.",
		strings.Join(extra, " "))

	h.logger.Debug("Normalized token scope",
		"extra_scopes", extra)
}

// writeTokenResponse writes a token response with the cache headers
// RFC 6749 requires for token endpoints.
func (h *Handler) writeTokenResponse(w http.ResponseWriter, tokenData map[string]any) {
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(tokenData); err != nil {
		h.logger.Error("Failed to encode token response", "error", err)
	}
}

// clientCredentials extracts client credentials from the form body,
// falling back to HTTP Basic auth (client_secret_basic).
func clientCredentials(r *http.Request) (clientID, clientSecret string) {
	clientID = r.FormValue("client_id")
	clientSecret = r.FormValue("client_secret")

	if clientID == "" || clientSecret == "" {
		if basicID, basicSecret, ok := r.BasicAuth(); ok {
			if clientID == "" {
				clientID = basicID
			}
			if clientSecret == "" {
				clientSecret = basicSecret
			}
		}
	}

	return clientID, clientSecret
}

// scopeSet splits a space-separated scope string into a set
func scopeSet(scope string) map[string]bool {
	set := make(map[string]bool)
	for _, s := range strings.Fields(scope) {
		set[s] = true
	}
	return set
}
