package oauth

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds the OAuth mediator configuration
type Config struct {
	// Resource is the public base URL of this server. It is used as the
	// RFC 8414 issuer and as the prefix for every advertised endpoint.
	Resource string

	// SupportedScopes are the Google API scopes this server requests.
	// Every upstream authorization uses exactly this set, regardless of
	// what the downstream client asked for.
	SupportedScopes []string

	// Google OAuth credentials and settings
	GoogleAuth GoogleAuthConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Security settings
	Security SecurityConfig

	// SessionTTL is how long pending sessions and minted authorization
	// codes stay valid. Default: 10 minutes.
	SessionTTL time.Duration

	// RegistryDir is where client records are persisted, one JSON file
	// per client. Empty or unwritable directories degrade to memory.
	RegistryDir string

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// HTTPClient is a custom HTTP client for upstream OAuth requests.
	// If not provided, a client with a 30 second timeout is used.
	HTTPClient *http.Client
}

// GoogleAuthConfig holds the server-owned upstream Google credentials.
// These are the only credentials ever presented to Google; dynamic
// clients never talk to Google directly.
type GoogleAuthConfig struct {
	// ClientID is the Google OAuth Client ID
	ClientID string

	// ClientSecret is the Google OAuth Client Secret
	ClientSecret string

	// RedirectURL is the callback Google redirects to after consent.
	// Default: {Resource}/oauth/callback. This is the only redirect URI
	// ever sent upstream; client-supplied redirect URIs are used solely
	// for the final hop back to the client.
	RedirectURL string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is the number of requests per second allowed per IP (0 = no limit)
	Rate int

	// Burst is the maximum burst size allowed per IP
	Burst int

	// CleanupInterval is how often to cleanup inactive rate limiters.
	// Default: 5 minutes.
	CleanupInterval time.Duration

	// TrustProxy indicates whether to trust X-Forwarded-For and
	// X-Real-IP headers. Only set behind a trusted proxy.
	TrustProxy bool
}

// SecurityConfig holds OAuth security settings
type SecurityConfig struct {
	// BootstrapRegistrationToken, when set, is required as a bearer
	// token on POST /clients. When empty, registration is open (RFC
	// 7591 public registration), throttled by MaxClientsPerIP.
	BootstrapRegistrationToken string

	// MaxClientsPerIP limits registrations per IP (0 = no limit).
	// Default: 10.
	MaxClientsPerIP int
}
