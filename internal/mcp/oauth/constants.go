package oauth

import "time"

// OAuth session and code timeouts
const (
	// DefaultSessionTTL is how long pending OAuth sessions and
	// server-minted authorization codes stay valid (10 minutes).
	// Expiry is enforced lazily on every read, not by a reaper.
	DefaultSessionTTL = 10 * time.Minute

	// DefaultRateLimitCleanupInterval is how often to cleanup inactive rate limiters
	DefaultRateLimitCleanupInterval = 5 * time.Minute

	// InactiveLimiterCleanupWindow is the time after which inactive limiters are removed
	InactiveLimiterCleanupWindow = 10 * time.Minute
)

// OAuth client and security defaults
const (
	// DefaultMaxClientsPerIP is the default limit for client registrations per IP
	DefaultMaxClientsPerIP = 10

	// DefaultRateLimitRate is the default requests per second per IP
	DefaultRateLimitRate = 10

	// DefaultRateLimitBurst is the default burst size for rate limiting
	DefaultRateLimitBurst = 20

	// DefaultTokenEndpointAuthMethod is the default client authentication method
	DefaultTokenEndpointAuthMethod = "client_secret_basic"

	// DefaultApplicationType is assumed when a registration omits application_type
	DefaultApplicationType = "web"
)

// Token generation constants (lengths are raw random bytes before
// base64url encoding, so every value carries >= 256 bits of entropy)
const (
	// ClientSecretLength is the length of generated client secrets
	ClientSecretLength = 48

	// RegistrationTokenLength is the length of generated registration access tokens
	RegistrationTokenLength = 48

	// AuthCodeLength is the length of server-minted authorization codes
	AuthCodeLength = 32

	// SessionIDLength is the length of generated browser-agent session IDs
	SessionIDLength = 32
)

// Client lifecycle states
const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
)

// ClientSuffix is the filename suffix for persisted client records,
// stored as <registry_dir>/<client_id>.json
const ClientSuffix = ".json"

// Redirect URI validation constants
var (
	// DangerousSchemes lists URI schemes that must never be allowed for security
	DangerousSchemes = []string{"javascript", "data", "file", "vbscript", "about"}

	// LoopbackAddresses lists recognized loopback addresses for development
	LoopbackAddresses = []string{"localhost", "127.0.0.1", "::1", "[::1]"}
)

// OAuth grant types and response types
var (
	// DefaultGrantTypes are the grant types supported by default
	DefaultGrantTypes = []string{"authorization_code", "refresh_token"}

	// DefaultResponseTypes are the response types supported by default
	DefaultResponseTypes = []string{"code"}

	// SupportedTokenAuthMethods are the supported token endpoint auth methods
	SupportedTokenAuthMethods = []string{"client_secret_basic", "client_secret_post", "none"}

	// SupportedApplicationTypes are the supported application types
	SupportedApplicationTypes = []string{"web", "native"}
)
