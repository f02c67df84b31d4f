package oauth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ServeClientRegistration handles POST /clients (RFC 7591).
// Registration is open unless a bootstrap registration token is
// configured, in which case it must arrive as a bearer token.
func (h *Handler) ServeClientRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if required := h.config.Security.BootstrapRegistrationToken; required != "" {
		token, err := bearerToken(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			h.writeOAuthError(w, ErrInvalidToken("Registration access token required"))
			return
		}
		if token != required {
			h.logger.Warn("Client registration rejected: invalid bootstrap token",
				"client_ip", r.RemoteAddr)
			h.writeError(w, "invalid_token", "Invalid registration access token", http.StatusForbidden)
			return
		}
	}

	var req ClientRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeOAuthError(w, ErrInvalidRequest("Failed to parse registration request"))
		return
	}

	clientIP := getClientIP(r, h.config.RateLimit.TrustProxy)
	if err := h.registry.CheckIPLimit(clientIP, h.config.Security.MaxClientsPerIP); err != nil {
		h.logger.Warn("Client registration limit exceeded",
			"client_ip", clientIP,
			"limit", h.config.Security.MaxClientsPerIP)
		h.writeError(w, "invalid_request", "Client registration limit exceeded for your IP address", http.StatusTooManyRequests)
		return
	}

	resp, err := h.registry.Register(&req, clientIP)
	if err != nil {
		if oauthErr, ok := err.(*OAuthError); ok {
			h.writeOAuthError(w, oauthErr)
			return
		}
		h.logger.Error("Failed to register client", "error", err)
		h.writeOAuthError(w, ErrServerError("Failed to register client"))
		return
	}

	resp.RegistrationClientURI = h.config.Resource + "/clients/" + resp.ClientID

	h.writeJSON(w, http.StatusCreated, resp)
}

// ServeClientResource handles GET, PUT and DELETE on /clients/{client_id}.
// All three require the client's registration access token as a bearer
// token: 401 when missing, 403 when wrong, 404 when the client is
// unknown, 204 on delete.
func (h *Handler) ServeClientResource(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if clientID == "" {
		h.writeOAuthError(w, ErrInvalidRequest("client_id is required"))
		return
	}

	token, err := bearerToken(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		h.writeOAuthError(w, ErrInvalidToken("Registration access token required"))
		return
	}

	client, err := h.registry.Get(clientID)
	if err != nil {
		h.writeError(w, "invalid_request", "Client not found", http.StatusNotFound)
		return
	}

	if err := h.registry.ValidateRegistrationToken(clientID, token); err != nil {
		h.logger.Warn("Client management rejected: invalid registration token",
			"client_id", clientID)
		h.writeError(w, "invalid_token", "Invalid registration access token", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, http.StatusOK, client.PublicView())

	case http.MethodPut:
		var fields map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			h.writeOAuthError(w, ErrInvalidRequest("Failed to parse update request"))
			return
		}

		view, err := h.registry.Update(clientID, fields)
		if err != nil {
			if oauthErr, ok := err.(*OAuthError); ok {
				h.writeOAuthError(w, oauthErr)
				return
			}
			h.writeError(w, "invalid_request", "Client not found", http.StatusNotFound)
			return
		}

		h.writeJSON(w, http.StatusOK, view)

	case http.MethodDelete:
		if err := h.registry.Delete(clientID); err != nil {
			h.writeError(w, "invalid_request", "Client not found", http.StatusNotFound)
			return
		}
		h.setSecurityHeaders(w)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ServeAdminClients handles GET /admin/clients, a diagnostic listing
// outside RFC 7591. Inactive clients are included when the
// include_inactive query parameter is truthy.
func (h *Handler) ServeAdminClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	clients := h.registry.List(includeInactive)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"clients": clients,
		"count":   len(clients),
	})
}

// bearerToken extracts a bearer token from the Authorization header
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrInvalidToken("Missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", ErrInvalidToken("Invalid Authorization header format")
	}

	return parts[1], nil
}
