package oauth

import (
	"net/http"

	"golang.org/x/oauth2"
)

// ServeAuthorization handles GET /authorize.
//
// Three shapes of request arrive here:
//   - dynamic clients send client_id and redirect_uri, which must match
//     an active registration; their routing metadata travels to Google
//     inside a dcr_-tagged state
//   - browser agents send session_id; the callback result is parked in
//     the session store under that ID for later polling
//   - everything else is the static/legacy flow, whose state passes
//     through untouched
//
// In every case the redirect to Google uses the server's own upstream
// credentials and fixed redirect URI, never the client's.
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.googleConfig == nil {
		h.logger.Error("Google OAuth not configured")
		h.writeOAuthError(w, ErrServerError("OAuth mediation not configured"))
		return
	}

	query := r.URL.Query()
	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")
	state := query.Get("state")
	sessionID := query.Get("session_id")

	var intent CallbackIntent
	switch {
	case clientID != "":
		if redirectURI == "" {
			h.writeOAuthError(w, ErrInvalidRequest("redirect_uri is required when client_id is provided"))
			return
		}

		client, err := h.registry.Get(clientID)
		if err != nil || client.Status != ClientStatusActive {
			h.logger.Warn("Authorization rejected: unknown or inactive client",
				"client_id", clientID)
			h.writeOAuthError(w, ErrInvalidClient("Invalid client_id"))
			return
		}

		if err := h.registry.ValidateRedirectURI(clientID, redirectURI); err != nil {
			h.logger.Warn("Authorization rejected: redirect_uri not registered",
				"client_id", clientID,
				"redirect_uri", redirectURI)
			h.writeOAuthError(w, ErrInvalidRequest("redirect_uri not registered for this client"))
			return
		}

		intent = DynamicClientIntent(clientID, redirectURI, state)

	case sessionID != "":
		intent = BrowserAgentIntent(sessionID)

	default:
		intent = LegacyIntent(state)
	}

	authURL, err := h.AuthorizationURL(intent)
	if err != nil {
		h.logger.Error("Failed to build authorization URL", "error", err)
		h.writeOAuthError(w, ErrServerError("Failed to build authorization URL"))
		return
	}

	h.logger.Info("Redirecting to Google for authorization",
		"client_id", clientID,
		"session_hash", hashForLogging(sessionID),
	)

	http.Redirect(w, r, authURL, http.StatusFound)
}

// AuthorizationURL builds the Google authorization URL for an intent.
// The flags are fixed for determinism: offline access with forced
// consent (so a refresh token is always issued) and incremental auth
// disabled.
func (h *Handler) AuthorizationURL(intent CallbackIntent) (string, error) {
	wireState, err := intent.EncodeState()
	if err != nil {
		return "", err
	}

	return h.googleConfig.AuthCodeURL(wireState,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "false"),
	), nil
}
