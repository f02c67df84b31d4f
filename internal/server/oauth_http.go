package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/talentops/lever-mcp/internal/mcp/oauth"
)

// OAuthHTTPServer serves the MCP endpoint together with the OAuth
// mediation surface: discovery metadata, the authorize/token/callback
// endpoints, dynamic client management, and the browser-agent polling
// adapter.
type OAuthHTTPServer struct {
	mcpServer    *mcpserver.MCPServer
	oauthHandler *oauth.Handler
	health       *HealthChecker
	httpServer   *http.Server
	serverType   string // "sse" or "streamable-http"
}

// NewOAuthHTTPServer creates the combined MCP + OAuth HTTP server. The
// OAuth handler is built by the caller so tools and HTTP share one
// registry and session store.
func NewOAuthHTTPServer(mcpServer *mcpserver.MCPServer, oauthHandler *oauth.Handler, health *HealthChecker, serverType string) (*OAuthHTTPServer, error) {
	if oauthHandler == nil {
		return nil, fmt.Errorf("OAuth handler is required")
	}

	switch serverType {
	case "sse", "streamable-http":
	default:
		return nil, fmt.Errorf("unsupported server type: %s", serverType)
	}

	return &OAuthHTTPServer{
		mcpServer:    mcpServer,
		oauthHandler: oauthHandler,
		health:       health,
		serverType:   serverType,
	}, nil
}

// Start starts the HTTP server. Blocks until the server stops.
func (s *OAuthHTTPServer) Start(addr string) error {
	// OAuth 2.1 requires HTTPS outside loopback development setups
	if err := validateHTTPSRequirement(s.oauthHandler.Config().Resource); err != nil {
		return err
	}

	mux := http.NewServeMux()
	limited := s.oauthHandler.RateLimitMiddleware

	// Discovery metadata (RFC 8414, RFC 9728)
	mux.Handle("/.well-known/oauth-authorization-server",
		limited(http.HandlerFunc(s.oauthHandler.ServeAuthorizationServerMetadata)))
	mux.Handle("/.well-known/oauth-protected-resource",
		limited(http.HandlerFunc(s.oauthHandler.ServeProtectedResourceMetadata)))

	// Authorization Code flow against Google
	mux.Handle("/authorize", limited(http.HandlerFunc(s.oauthHandler.ServeAuthorization)))
	mux.Handle("/token", limited(http.HandlerFunc(s.oauthHandler.ServeToken)))
	mux.Handle("/oauth/callback", limited(http.HandlerFunc(s.oauthHandler.ServeCallback)))

	// Dynamic Client Registration (RFC 7591) and client management
	mux.Handle("/clients", limited(http.HandlerFunc(s.oauthHandler.ServeClientRegistration)))
	mux.Handle("/clients/{client_id}", limited(http.HandlerFunc(s.oauthHandler.ServeClientResource)))
	mux.Handle("/admin/clients", limited(http.HandlerFunc(s.oauthHandler.ServeAdminClients)))

	// Browser-agent polling adapter
	mux.Handle("/oauth/poll/{session_id}", limited(http.HandlerFunc(s.oauthHandler.ServePoll)))
	mux.Handle("/oauth/status/{session_id}", limited(http.HandlerFunc(s.oauthHandler.ServeStatus)))

	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}

	// MCP endpoint, authenticated per request with the agent's Google token
	switch s.serverType {
	case "sse":
		sseServer := mcpserver.NewSSEServer(s.mcpServer,
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
		)
		mux.Handle("/sse", limited(s.oauthHandler.ValidateGoogleToken(sseServer)))
		mux.Handle("/message", limited(s.oauthHandler.ValidateGoogleToken(sseServer)))

	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
		)
		mux.Handle("/mcp", limited(s.oauthHandler.ValidateGoogleToken(httpServer)))
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// OAuthHandler returns the OAuth handler for testing or direct access
func (s *OAuthHTTPServer) OAuthHandler() *oauth.Handler {
	return s.oauthHandler
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance.
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1).
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
