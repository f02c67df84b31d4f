package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/talentops/lever-mcp/internal/gmail"
	"github.com/talentops/lever-mcp/internal/google"
	"github.com/talentops/lever-mcp/internal/instrumentation"
	"github.com/talentops/lever-mcp/internal/lever"
	"github.com/talentops/lever-mcp/internal/mcp/oauth"
)

// ServerContext holds the shared dependencies for the MCP server:
// the OAuth mediator, the per-user Google token store, the Lever
// client, and lazily built Gmail clients.
type ServerContext struct {
	ctx          context.Context
	cancel       context.CancelFunc
	logger       *slog.Logger
	oauthHandler *oauth.Handler
	tokens       *google.TokenStore
	leverClient  *lever.Client
	gmailClients map[string]*gmail.Client // Maps user ID to Gmail client
	metrics      *instrumentation.Metrics
	auditLogger  *instrumentation.AuditLogger
	mu           sync.RWMutex
	shutdown     bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, logger *slog.Logger) *ServerContext {
	if logger == nil {
		logger = slog.Default()
	}
	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:          shutdownCtx,
		cancel:       cancel,
		logger:       logger,
		gmailClients: make(map[string]*gmail.Client),
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the server logger
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetOAuthHandler wires in the OAuth mediator
func (sc *ServerContext) SetOAuthHandler(h *oauth.Handler) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.oauthHandler = h
}

// OAuthHandler returns the OAuth mediator, or nil if OAuth is not configured
func (sc *ServerContext) OAuthHandler() *oauth.Handler {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.oauthHandler
}

// SetTokenStore wires in the per-user Google token store
func (sc *ServerContext) SetTokenStore(tokens *google.TokenStore) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.tokens = tokens
}

// TokenStore returns the per-user Google token store
func (sc *ServerContext) TokenStore() *google.TokenStore {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.tokens
}

// SetLeverClient wires in the Lever API client
func (sc *ServerContext) SetLeverClient(client *lever.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.leverClient = client
}

// LeverClient returns the Lever API client, or an error when the server
// was started without a Lever API key.
func (sc *ServerContext) LeverClient() (*lever.Client, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.leverClient == nil {
		return nil, fmt.Errorf("Lever API is not configured. Set LEVER_API_KEY and restart the server")
	}
	return sc.leverClient, nil
}

// GmailClientForUser returns the Gmail client for a user with persisted
// credentials, creating and caching it on first use.
func (sc *ServerContext) GmailClientForUser(userID string) (*gmail.Client, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.gmailClients[userID]; ok {
		return client, nil
	}

	if sc.tokens == nil {
		return nil, fmt.Errorf("no token store configured")
	}

	httpClient, err := sc.tokens.Client(sc.ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("no Google credential for user %s: %w. Authenticate with get_oauth_url first", userID, err)
	}

	client, err := gmail.NewClient(sc.ctx, userID, httpClient)
	if err != nil {
		return nil, err
	}

	sc.gmailClients[userID] = client
	return client, nil
}

// GmailClientForToken builds a Gmail client around a caller-provided
// access token (on-behalf-of flow). Nothing is cached or persisted.
func (sc *ServerContext) GmailClientForToken(ctx context.Context, accessToken string) (*gmail.Client, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	return gmail.NewClient(ctx, "on-behalf-of", httpClient)
}

// InvalidateGmailClient drops a cached Gmail client, forcing a rebuild
// on next use. Called after a user's credential is replaced.
func (sc *ServerContext) InvalidateGmailClient(userID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.gmailClients, userID)
}

// HTTPClientForUser returns an OAuth-authenticated HTTP client for the user
func (sc *ServerContext) HTTPClientForUser(ctx context.Context, userID string) (*http.Client, error) {
	sc.mu.RLock()
	tokens := sc.tokens
	sc.mu.RUnlock()

	if tokens == nil {
		return nil, fmt.Errorf("no token store configured")
	}
	return tokens.Client(ctx, userID)
}

// SetInstrumentation wires in metrics and audit logging. Both may be
// nil when instrumentation is disabled.
func (sc *ServerContext) SetInstrumentation(metrics *instrumentation.Metrics, auditLogger *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
	sc.auditLogger = auditLogger
}

// Metrics returns the metrics recorder, or nil if not configured
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil if not configured
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
