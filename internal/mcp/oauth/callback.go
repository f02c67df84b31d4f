package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ServeCallback handles GET /oauth/callback, the redirect target
// registered with Google. Routing is driven entirely by the decoded
// CallbackIntent carried in the state parameter.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")
	errorParam := query.Get("error")

	if errorParam != "" {
		errorDesc := query.Get("error_description")
		h.logger.Warn("Google OAuth error on callback",
			"error", errorParam,
			"description", errorDesc,
		)
		h.renderCallbackError(w, r, errorParam, errorDesc)
		return
	}

	if code == "" {
		h.renderCallbackError(w, r, "invalid_request", "Callback is missing the authorization code")
		return
	}

	intent, err := DecodeState(state)
	if err != nil {
		h.logger.Warn("Failed to decode callback state", "error", err)
		h.renderCallbackError(w, r, "invalid_request", "Callback state could not be decoded")
		return
	}

	switch intent.Kind {
	case IntentBrowserAgent:
		h.handleBrowserAgentCallback(w, r, intent, code, state)
	case IntentDynamicClient:
		h.handleDynamicClientCallback(w, r, intent, code)
	default:
		h.renderCallbackSuccess(w, r, code)
	}
}

// handleBrowserAgentCallback parks the Google code in the session store
// so the polling agent can pick it up.
func (h *Handler) handleBrowserAgentCallback(w http.ResponseWriter, r *http.Request, intent CallbackIntent, code, state string) {
	session := &Session{
		Code:      code,
		State:     state,
		CreatedAt: time.Now().Unix(),
	}

	if err := h.sessions.Put(intent.SessionID, session); err != nil {
		h.logger.Error("Failed to store browser-agent session", "error", err)
		h.renderCallbackError(w, r, "server_error", "Failed to store authorization result")
		return
	}

	h.logger.Info("Stored authorization code for polling session",
		"session_hash", hashForLogging(intent.SessionID))

	h.renderCallbackSuccess(w, r, "")
}

// handleDynamicClientCallback exchanges the Google code server-side,
// mints a fresh server-owned authorization code bound to the dynamic
// client, and redirects the user-agent to the client's own redirect
// URI. Google's code and token are never exposed to the client's
// redirect target; the client trades the minted code at /token.
func (h *Handler) handleDynamicClientCallback(w http.ResponseWriter, r *http.Request, intent CallbackIntent, code string) {
	googleToken, err := h.exchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("Failed to exchange code with Google",
			"client_id", intent.ClientID,
			"error", err)
		h.renderCallbackError(w, r, "server_error", "Failed to exchange authorization code with Google")
		return
	}

	authCode, err := generateSecureToken(AuthCodeLength)
	if err != nil {
		h.logger.Error("Failed to mint authorization code", "error", err)
		h.renderCallbackError(w, r, "server_error", "Failed to mint authorization code")
		return
	}

	session := &Session{
		GoogleToken: googleToken,
		ClientID:    intent.ClientID,
		Type:        SessionTypeDCRAuthCode,
		CreatedAt:   time.Now().Unix(),
	}
	if err := h.sessions.Put(authCode, session); err != nil {
		h.logger.Error("Failed to store DCR session", "error", err)
		h.renderCallbackError(w, r, "server_error", "Failed to store authorization result")
		return
	}

	redirectURL, err := url.Parse(intent.RedirectURI)
	if err != nil {
		h.logger.Error("Invalid client redirect URI",
			"client_id", intent.ClientID,
			"redirect_uri", intent.RedirectURI)
		h.renderCallbackError(w, r, "server_error", "Invalid client redirect URI")
		return
	}

	redirectQuery := redirectURL.Query()
	redirectQuery.Set("code", authCode)
	if intent.OriginalState != "" {
		redirectQuery.Set("state", intent.OriginalState)
	}
	redirectURL.RawQuery = redirectQuery.Encode()

	h.logger.Info("Redirecting back to dynamic client",
		"client_id", intent.ClientID,
		"redirect_uri", intent.RedirectURI,
	)

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

// exchangeCode trades a Google authorization code for a token using the
// server's upstream credentials and returns the response in its wire
// shape, so the DCR token branch can pass it through verbatim.
func (h *Handler) exchangeCode(ctx context.Context, code string) (map[string]any, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)

	token, err := h.googleConfig.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
	}
	if token.RefreshToken != "" {
		data["refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		data["expires_in"] = int64(time.Until(token.Expiry).Seconds())
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		data["scope"] = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		data["id_token"] = idToken
	}

	return data, nil
}

// wantsJSON reports whether the caller asked for a JSON response
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// renderCallbackSuccess renders the terminal success response for
// browser-agent and legacy flows. The code is only echoed for legacy
// callers; browser-agent results travel through the session store.
func (h *Handler) renderCallbackSuccess(w http.ResponseWriter, r *http.Request, code string) {
	if wantsJSON(r) {
		body := map[string]string{"status": "success"}
		if code != "" {
			body["code"] = code
		}
		h.writeJSON(w, http.StatusOK, body)
		return
	}

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, callbackSuccessPage)
}

// renderCallbackError renders the terminal error response: JSON for
// API callers, otherwise an HTML page that posts an oauth_error message
// to the opening window and attempts to close itself.
func (h *Handler) renderCallbackError(w http.ResponseWriter, r *http.Request, errorCode, description string) {
	if wantsJSON(r) {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            errorCode,
			ErrorDescription: description,
		})
		return
	}

	payload, _ := json.Marshal(map[string]string{
		"type":              "oauth_error",
		"error":             errorCode,
		"error_description": description,
	})

	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, callbackErrorPage, payload)
}

const callbackSuccessPage = `<!DOCTYPE html>
<html>
<head><title>Authorization complete</title></head>
<body>
<h2>Authorization complete</h2>
<p>You can close this window and return to your application.</p>
<script>
  if (window.opener) {
    window.opener.postMessage({type: "oauth_success"}, "*");
  }
  setTimeout(function() { window.close(); }, 1500);
</script>
</body>
</html>
`

const callbackErrorPage = `<!DOCTYPE html>
<html>
<head><title>Authorization failed</title></head>
<body>
<h2>Authorization failed</h2>
<p>The authorization attempt was not completed. You can close this window.</p>
<script>
  if (window.opener) {
    window.opener.postMessage(%s, "*");
  }
  setTimeout(function() { window.close(); }, 1500);
</script>
</body>
</html>
`
