package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/talentops/lever-mcp/internal/storage"
)

// Registry manages dynamically registered OAuth clients (RFC 7591).
// Records are cached in memory and written through to the configured
// PersistenceBackend. Persistence failures are logged and ignored: a
// registration never fails purely because the disk is read-only.
//
// Cached records are treated as immutable: Update and Delete swap in a
// clone instead of mutating the stored struct, so a record read under
// the lock remains safe to inspect after the lock is released.
type Registry struct {
	clients      map[string]*RegisteredClient
	clientsPerIP map[string]int
	backend      storage.Backend
	mu           sync.RWMutex
	logger       *slog.Logger
}

// NewRegistry creates a client registry backed by the given persistence
// backend and loads any previously persisted client records.
func NewRegistry(backend storage.Backend, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = storage.NewMemoryBackend()
	}

	r := &Registry{
		clients:      make(map[string]*RegisteredClient),
		clientsPerIP: make(map[string]int),
		backend:      backend,
		logger:       logger,
	}

	records, err := backend.LoadAll()
	if err != nil {
		logger.Warn("Failed to load persisted clients", "error", err)
		return r
	}

	for id, raw := range records {
		var client RegisteredClient
		if err := json.Unmarshal(raw, &client); err != nil {
			logger.Warn("Skipping malformed client record", "client_id", id, "error", err)
			continue
		}
		r.clients[client.ClientID] = &client
	}

	if len(r.clients) > 0 {
		logger.Info("Loaded persisted OAuth clients", "count", len(r.clients))
	}

	return r
}

// updatableFields are the registration fields that Update may mutate.
// Everything else (identity, hashes, timestamps, status) is immutable
// through the management endpoint.
var updatableFields = map[string]bool{
	"redirect_uris":              true,
	"response_types":             true,
	"grant_types":                true,
	"application_type":           true,
	"token_endpoint_auth_method": true,
	"client_name":                true,
	"client_uri":                 true,
	"logo_uri":                   true,
	"contacts":                   true,
	"scope":                      true,
}

// CheckIPLimit returns an error if the IP has reached the registration limit
func (r *Registry) CheckIPLimit(ip string, maxClientsPerIP int) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if maxClientsPerIP <= 0 {
		return nil
	}

	count := r.clientsPerIP[ip]
	if count >= maxClientsPerIP {
		return fmt.Errorf("client registration limit reached for IP %s (%d/%d)", ip, count, maxClientsPerIP)
	}

	return nil
}

// Register validates the registration metadata, mints credentials and
// stores the client. The response carries the plaintext client secret
// and registration access token; this is the only time they exist
// outside their bcrypt hashes.
func (r *Registry) Register(req *ClientRegistrationRequest, clientIP string) (*ClientRegistrationResponse, error) {
	if err := validateClientMetadata(req); err != nil {
		return nil, err
	}

	clientSecret, err := generateSecureToken(ClientSecretLength)
	if err != nil {
		return nil, ErrServerError("failed to generate client secret")
	}
	registrationToken, err := generateSecureToken(RegistrationTokenLength)
	if err != nil {
		return nil, ErrServerError("failed to generate registration access token")
	}

	secretHash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrServerError("failed to hash client secret")
	}
	tokenHash, err := bcrypt.GenerateFromPassword([]byte(registrationToken), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrServerError("failed to hash registration access token")
	}

	clientID := "dcr_" + hex.EncodeToString(uuidBytes())
	now := time.Now().Unix()

	client := &RegisteredClient{
		ClientID:                    clientID,
		ClientSecretHash:            string(secretHash),
		RegistrationAccessTokenHash: string(tokenHash),
		RedirectURIs:                req.RedirectURIs,
		ResponseTypes:               defaulted(req.ResponseTypes, DefaultResponseTypes),
		GrantTypes:                  defaulted(req.GrantTypes, DefaultGrantTypes),
		ApplicationType:             defaultedString(req.ApplicationType, DefaultApplicationType),
		TokenEndpointAuthMethod:     defaultedString(req.TokenEndpointAuthMethod, DefaultTokenEndpointAuthMethod),
		ClientName:                  req.ClientName,
		ClientURI:                   req.ClientURI,
		LogoURI:                     req.LogoURI,
		Contacts:                    req.Contacts,
		Scope:                       req.Scope,
		Status:                      ClientStatusActive,
		ClientIDIssuedAt:            now,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}

	r.mu.Lock()
	r.clients[clientID] = client
	if clientIP != "" {
		r.clientsPerIP[clientIP]++
	}
	r.mu.Unlock()

	r.persist(client)

	r.logger.Info("Registered new OAuth client",
		"client_id", clientID,
		"client_name", req.ClientName,
		"client_ip", clientIP,
		"redirect_uris", req.RedirectURIs,
		"grant_types", client.GrantTypes,
	)

	return &ClientRegistrationResponse{
		ClientID:                clientID,
		ClientSecret:            clientSecret,
		ClientIDIssuedAt:        now,
		ClientSecretExpiresAt:   0,
		RegistrationAccessToken: registrationToken,
		RedirectURIs:            client.RedirectURIs,
		ResponseTypes:           client.ResponseTypes,
		GrantTypes:              client.GrantTypes,
		ApplicationType:         client.ApplicationType,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
		ClientName:              client.ClientName,
		ClientURI:               client.ClientURI,
		LogoURI:                 client.LogoURI,
		Contacts:                client.Contacts,
		Scope:                   client.Scope,
	}, nil
}

// Get retrieves a registered client by ID. The returned record is a
// snapshot; later registry writes do not show through it.
func (r *Registry) Get(clientID string) (*RegisteredClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[clientID]
	if !exists {
		return nil, fmt.Errorf("client not found")
	}

	return client.clone(), nil
}

// Authenticate verifies a client secret against the stored bcrypt hash.
// Inactive clients always fail authentication.
func (r *Registry) Authenticate(clientID, clientSecret string) error {
	r.mu.RLock()
	client, exists := r.clients[clientID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("client not found")
	}
	if client.Status != ClientStatusActive {
		return fmt.Errorf("client is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.ClientSecretHash), []byte(clientSecret)); err != nil {
		return fmt.Errorf("invalid client secret")
	}

	return nil
}

// ValidateRegistrationToken verifies a registration access token against
// the stored hash for the given client.
func (r *Registry) ValidateRegistrationToken(clientID, token string) error {
	r.mu.RLock()
	client, exists := r.clients[clientID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("client not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.RegistrationAccessTokenHash), []byte(token)); err != nil {
		return fmt.Errorf("invalid registration access token")
	}

	return nil
}

// ValidateRedirectURI checks that a redirect URI is registered for an
// active client.
func (r *Registry) ValidateRedirectURI(clientID, redirectURI string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[clientID]
	if !exists {
		return fmt.Errorf("client not found")
	}
	if client.Status != ClientStatusActive {
		return fmt.Errorf("client is inactive")
	}

	for _, uri := range client.RedirectURIs {
		if uri == redirectURI {
			return nil
		}
	}

	return fmt.Errorf("redirect_uri not registered for this client")
}

// Update mutates the allow-listed fields of a client registration.
// Fields outside the allow-list are rejected, not silently dropped.
func (r *Registry) Update(clientID string, fields map[string]json.RawMessage) (*PublicClientView, error) {
	for name := range fields {
		if !updatableFields[name] {
			return nil, ErrInvalidClientMetadata(fmt.Sprintf("field %q is not updatable", name))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.clients[clientID]
	if !exists {
		return nil, fmt.Errorf("client not found")
	}

	updated := client.clone()
	if err := applyClientFields(updated, fields); err != nil {
		return nil, err
	}

	// Re-validate the merged metadata before committing
	req := &ClientRegistrationRequest{
		RedirectURIs:            updated.RedirectURIs,
		ResponseTypes:           updated.ResponseTypes,
		GrantTypes:              updated.GrantTypes,
		ApplicationType:         updated.ApplicationType,
		TokenEndpointAuthMethod: updated.TokenEndpointAuthMethod,
	}
	if err := validateClientMetadata(req); err != nil {
		return nil, err
	}

	updated.UpdatedAt = time.Now().Unix()
	r.clients[clientID] = updated
	r.persistLocked(updated)

	r.logger.Info("Updated OAuth client", "client_id", clientID)

	return updated.PublicView(), nil
}

// Delete soft-deletes a client by flipping its status to inactive.
// The record and its identity are kept forever.
func (r *Registry) Delete(clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.clients[clientID]
	if !exists {
		return fmt.Errorf("client not found")
	}

	if client.Status == ClientStatusInactive {
		return nil
	}

	updated := client.clone()
	updated.Status = ClientStatusInactive
	updated.UpdatedAt = time.Now().Unix()
	r.clients[clientID] = updated
	r.persistLocked(updated)

	r.logger.Info("Deactivated OAuth client", "client_id", clientID)
	return nil
}

// List returns public views of registered clients, inactive ones only
// when requested.
func (r *Registry) List(includeInactive bool) []*PublicClientView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]*PublicClientView, 0, len(r.clients))
	for _, client := range r.clients {
		if !includeInactive && client.Status != ClientStatusActive {
			continue
		}
		views = append(views, client.PublicView())
	}

	return views
}

// persist writes a client record through to the backend, logging
// failures without surfacing them.
func (r *Registry) persist(client *RegisteredClient) {
	if err := r.backend.Save(client.ClientID, client); err != nil {
		r.logger.Warn("Failed to persist client record",
			"client_id", client.ClientID,
			"error", err)
	}
}

// persistLocked is persist for callers already holding r.mu
func (r *Registry) persistLocked(client *RegisteredClient) {
	if err := r.backend.Save(client.ClientID, client); err != nil {
		r.logger.Warn("Failed to persist client record",
			"client_id", client.ClientID,
			"error", err)
	}
}

// validateClientMetadata enforces the RFC 7591 subset this server accepts
func validateClientMetadata(req *ClientRegistrationRequest) error {
	if len(req.RedirectURIs) == 0 {
		return ErrInvalidClientMetadata("at least one redirect_uri is required")
	}

	for _, uri := range req.RedirectURIs {
		if err := validateRedirectURI(uri); err != nil {
			return ErrInvalidRedirectURI(err.Error())
		}
	}

	for _, rt := range req.ResponseTypes {
		if !contains(DefaultResponseTypes, rt) {
			return ErrInvalidClientMetadata(fmt.Sprintf("unsupported response_type: %s", rt))
		}
	}

	for _, gt := range req.GrantTypes {
		if !contains(DefaultGrantTypes, gt) {
			return ErrInvalidClientMetadata(fmt.Sprintf("unsupported grant_type: %s", gt))
		}
	}

	if req.ApplicationType != "" && !contains(SupportedApplicationTypes, req.ApplicationType) {
		return ErrInvalidClientMetadata(fmt.Sprintf("unsupported application_type: %s", req.ApplicationType))
	}

	if req.TokenEndpointAuthMethod != "" && !contains(SupportedTokenAuthMethods, req.TokenEndpointAuthMethod) {
		return ErrInvalidClientMetadata(fmt.Sprintf("unsupported token_endpoint_auth_method: %s", req.TokenEndpointAuthMethod))
	}

	return nil
}

// validateRedirectURI accepts HTTPS URIs and HTTP loopback URIs only
func validateRedirectURI(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("invalid redirect_uri format: %s", uri)
	}

	if parsed.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain fragments: %s", uri)
	}

	scheme := strings.ToLower(parsed.Scheme)
	for _, dangerous := range DangerousSchemes {
		if scheme == dangerous {
			return fmt.Errorf("redirect_uri scheme %q is not allowed", parsed.Scheme)
		}
	}

	switch scheme {
	case "https":
		if parsed.Host == "" {
			return fmt.Errorf("redirect_uri must have a host: %s", uri)
		}
		return nil
	case "http":
		if !isLoopback(parsed.Hostname()) {
			return fmt.Errorf("http redirect_uri is only allowed for loopback addresses: %s", uri)
		}
		return nil
	default:
		return fmt.Errorf("redirect_uri must use https or http://localhost: %s", uri)
	}
}

// applyClientFields unmarshals the allow-listed update fields onto the client
func applyClientFields(client *RegisteredClient, fields map[string]json.RawMessage) error {
	targets := map[string]any{
		"redirect_uris":              &client.RedirectURIs,
		"response_types":             &client.ResponseTypes,
		"grant_types":                &client.GrantTypes,
		"application_type":           &client.ApplicationType,
		"token_endpoint_auth_method": &client.TokenEndpointAuthMethod,
		"client_name":                &client.ClientName,
		"client_uri":                 &client.ClientURI,
		"logo_uri":                   &client.LogoURI,
		"contacts":                   &client.Contacts,
		"scope":                      &client.Scope,
	}

	for name, raw := range fields {
		if err := json.Unmarshal(raw, targets[name]); err != nil {
			return ErrInvalidClientMetadata(fmt.Sprintf("invalid value for %s", name))
		}
	}

	return nil
}

// isLoopback checks if a hostname is a loopback address
func isLoopback(hostname string) bool {
	hostname = strings.Trim(hostname, "[]")

	for _, loopback := range LoopbackAddresses {
		if hostname == loopback {
			return true
		}
	}

	return strings.HasPrefix(hostname, "127.")
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b), nil
}

func uuidBytes() []byte {
	id := uuid.New()
	return id[:]
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func defaulted(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}

func defaultedString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
