package oauth

// RegisteredClient is a dynamically registered OAuth client (RFC 7591).
// Secrets are stored as bcrypt hashes only; the plaintext values are
// returned exactly once, in the registration response.
type RegisteredClient struct {
	// ClientID is the server-generated, globally unique client identifier
	ClientID string `json:"client_id"`

	// ClientSecretHash is the bcrypt hash of the client secret
	ClientSecretHash string `json:"client_secret_hash"`

	// RegistrationAccessTokenHash is the bcrypt hash of the token that
	// authorizes management of this registration (RFC 7592 style)
	RegistrationAccessTokenHash string `json:"registration_access_token_hash"`

	// RedirectURIs is the non-empty list of registered redirect URIs
	RedirectURIs []string `json:"redirect_uris"`

	// ResponseTypes is a subset of {"code"}
	ResponseTypes []string `json:"response_types"`

	// GrantTypes is a subset of {"authorization_code", "refresh_token"}
	GrantTypes []string `json:"grant_types"`

	// ApplicationType is "web" or "native"
	ApplicationType string `json:"application_type"`

	// TokenEndpointAuthMethod is one of client_secret_basic,
	// client_secret_post, none
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method"`

	// Pass-through metadata (not interpreted by the server)
	ClientName string   `json:"client_name,omitempty"`
	ClientURI  string   `json:"client_uri,omitempty"`
	LogoURI    string   `json:"logo_uri,omitempty"`
	Contacts   []string `json:"contacts,omitempty"`
	Scope      string   `json:"scope,omitempty"`

	// Status is "active" or "inactive". Deletion is a soft delete:
	// the record is kept and the status flips to inactive.
	Status string `json:"status"`

	// ClientIDIssuedAt is the Unix timestamp of registration
	ClientIDIssuedAt int64 `json:"client_id_issued_at"`

	// CreatedAt and UpdatedAt are Unix timestamps
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// clone returns a copy of the record with its own slice storage.
// Stored records are never mutated in place; writers replace the map
// entry with a fresh clone, so a record handed out to a reader stays
// stable after the registry lock is released.
func (c *RegisteredClient) clone() *RegisteredClient {
	out := *c
	out.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	out.ResponseTypes = append([]string(nil), c.ResponseTypes...)
	out.GrantTypes = append([]string(nil), c.GrantTypes...)
	out.Contacts = append([]string(nil), c.Contacts...)
	return &out
}

// PublicView returns the client metadata without secret hashes,
// suitable for GET /clients/{id} and listing endpoints.
func (c *RegisteredClient) PublicView() *PublicClientView {
	return &PublicClientView{
		ClientID:                c.ClientID,
		RedirectURIs:            c.RedirectURIs,
		ResponseTypes:           c.ResponseTypes,
		GrantTypes:              c.GrantTypes,
		ApplicationType:         c.ApplicationType,
		TokenEndpointAuthMethod: c.TokenEndpointAuthMethod,
		ClientName:              c.ClientName,
		ClientURI:               c.ClientURI,
		LogoURI:                 c.LogoURI,
		Contacts:                c.Contacts,
		Scope:                   c.Scope,
		Status:                  c.Status,
		ClientIDIssuedAt:        c.ClientIDIssuedAt,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
}

// PublicClientView is a RegisteredClient with all secret material stripped
type PublicClientView struct {
	ClientID                string   `json:"client_id"`
	RedirectURIs            []string `json:"redirect_uris"`
	ResponseTypes           []string `json:"response_types"`
	GrantTypes              []string `json:"grant_types"`
	ApplicationType         string   `json:"application_type"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	Contacts                []string `json:"contacts,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	Status                  string   `json:"status"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	CreatedAt               int64    `json:"created_at"`
	UpdatedAt               int64    `json:"updated_at"`
}

// ClientRegistrationRequest is the RFC 7591 registration request body
type ClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ApplicationType         string   `json:"application_type,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	Contacts                []string `json:"contacts,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// ClientRegistrationResponse is the RFC 7591 registration response.
// ClientSecret and RegistrationAccessToken carry plaintext values and
// are only ever populated in the response to a successful registration.
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	RegistrationAccessToken string   `json:"registration_access_token,omitempty"`
	RegistrationClientURI   string   `json:"registration_client_uri,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	ResponseTypes           []string `json:"response_types"`
	GrantTypes              []string `json:"grant_types"`
	ApplicationType         string   `json:"application_type"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	ClientName              string   `json:"client_name,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
	Contacts                []string `json:"contacts,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// TokenResponse is the token endpoint response, shaped like Google's.
//
// OriginalScope and ScopeNote are side-channel fields populated when the
// granted scope set is wider than the requested one: Scope is rewritten
// to exactly the requested set so scope-strict clients accept the token,
// while the true grant is preserved here.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`

	OriginalScope string `json:"_original_scope,omitempty"`
	ScopeNote     string `json:"_scope_note,omitempty"`
}

// AuthorizationServerMetadata is the RFC 8414 discovery document
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
}

// ProtectedResourceMetadata is the RFC 9728 discovery document
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}

// ErrorResponse represents an OAuth error response
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}
