package oauth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	oauth2google "golang.org/x/oauth2/google"

	"github.com/talentops/lever-mcp/internal/google"
	"github.com/talentops/lever-mcp/internal/storage"
)

// Handler implements the OAuth mediator: the endpoints that sit between
// MCP clients (static or dynamically registered) and Google's OAuth
// server. It validates requests, forwards authorization to Google with
// the server's own upstream credentials, routes callbacks based on the
// encoded state, and normalizes token responses.
type Handler struct {
	config       *Config
	registry     *Registry
	sessions     SessionStore
	rateLimiter  *RateLimiter
	googleConfig *oauth2.Config
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewHandler creates the OAuth mediator. The session store is injected
// so TTL behavior can be exercised in isolation.
func NewHandler(config *Config, registry *Registry, sessions SessionStore) (*Handler, error) {
	if config.Resource == "" {
		return nil, fmt.Errorf("resource is required")
	}

	// Allow HTTP only for loopback addresses (development),
	// require HTTPS everywhere else
	parsedURL, err := url.Parse(config.Resource)
	if err != nil {
		return nil, fmt.Errorf("invalid resource URL: %w", err)
	}
	if parsedURL.Scheme != "https" && !isLoopback(parsedURL.Hostname()) {
		return nil, fmt.Errorf("resource must use HTTPS in production (got %s://)", parsedURL.Scheme)
	}

	if len(config.SupportedScopes) == 0 {
		config.SupportedScopes = google.GmailScopes
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.Security.MaxClientsPerIP == 0 {
		config.Security.MaxClientsPerIP = DefaultMaxClientsPerIP
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if registry == nil {
		registry = NewRegistry(storage.NewMemoryBackend(), logger)
	}
	if sessions == nil {
		sessions = NewMemorySessionStore(config.SessionTTL, logger)
	}

	var rateLimiter *RateLimiter
	if config.RateLimit.Rate > 0 {
		burst := config.RateLimit.Burst
		if burst == 0 {
			burst = config.RateLimit.Rate * 2
		}
		cleanupInterval := config.RateLimit.CleanupInterval
		if cleanupInterval == 0 {
			cleanupInterval = DefaultRateLimitCleanupInterval
		}
		rateLimiter = NewRateLimiter(config.RateLimit.Rate, burst, config.RateLimit.TrustProxy, cleanupInterval)
		logger.Info("IP-based rate limiting enabled",
			"rate", config.RateLimit.Rate,
			"burst", burst)
	}

	var googleConfig *oauth2.Config
	if config.GoogleAuth.ClientID != "" && config.GoogleAuth.ClientSecret != "" {
		redirectURL := config.GoogleAuth.RedirectURL
		if redirectURL == "" {
			redirectURL = config.Resource + "/oauth/callback"
		}

		googleConfig = &oauth2.Config{
			ClientID:     config.GoogleAuth.ClientID,
			ClientSecret: config.GoogleAuth.ClientSecret,
			Endpoint:     oauth2google.Endpoint,
			Scopes:       config.SupportedScopes,
			RedirectURL:  redirectURL,
		}
		logger.Info("OAuth mediation enabled with Google credentials",
			"redirect_url", redirectURL)
	} else {
		logger.Warn("OAuth mediation disabled: Google OAuth credentials not provided")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	return &Handler{
		config:       config,
		registry:     registry,
		sessions:     sessions,
		rateLimiter:  rateLimiter,
		googleConfig: googleConfig,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Registry returns the client registry (for management endpoints and tests)
func (h *Handler) Registry() *Registry {
	return h.registry
}

// Sessions returns the session store (for the polling tools and tests)
func (h *Handler) Sessions() SessionStore {
	return h.sessions
}

// Config returns the OAuth configuration
func (h *Handler) Config() *Config {
	return h.config
}

// ServeAuthorizationServerMetadata serves the OAuth 2.0 Authorization
// Server Metadata (RFC 8414) describing this server's endpoints.
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := AuthorizationServerMetadata{
		Issuer:                            h.config.Resource,
		AuthorizationEndpoint:             h.config.Resource + "/authorize",
		TokenEndpoint:                     h.config.Resource + "/token",
		RegistrationEndpoint:              h.config.Resource + "/clients",
		ScopesSupported:                   h.config.SupportedScopes,
		ResponseTypesSupported:            DefaultResponseTypes,
		GrantTypesSupported:               DefaultGrantTypes,
		TokenEndpointAuthMethodsSupported: SupportedTokenAuthMethods,
	}

	h.writeJSON(w, http.StatusOK, metadata)
}

// ServeProtectedResourceMetadata serves the OAuth 2.0 Protected Resource
// Metadata (RFC 9728). MCP clients discover the authorization server
// through this document after receiving a 401 with a WWW-Authenticate
// header pointing here.
func (h *Handler) ServeProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metadata := ProtectedResourceMetadata{
		Resource:               h.config.Resource,
		AuthorizationServers:   []string{h.config.Resource},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        h.config.SupportedScopes,
	}

	h.writeJSON(w, http.StatusOK, metadata)
}

// setSecurityHeaders sets security headers on HTTP responses
func (h *Handler) setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	w.Header().Set("Referrer-Policy", "no-referrer")

	if parsedURL, err := url.Parse(h.config.Resource); err == nil && parsedURL.Scheme == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

// writeJSON writes a JSON response with security headers
func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	h.setSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError is a helper to write OAuth error responses
func (h *Handler) writeError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	h.logger.Debug("OAuth error", "code", errorCode, "description", description, "status", statusCode)
	h.writeJSON(w, statusCode, ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// writeOAuthError writes a structured OAuthError
func (h *Handler) writeOAuthError(w http.ResponseWriter, err *OAuthError) {
	h.writeError(w, err.Code, err.Description, err.Status)
}
