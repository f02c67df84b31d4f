package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/oauth2"
	oauth2google "golang.org/x/oauth2/google"

	"github.com/talentops/lever-mcp/internal/google"
	"github.com/talentops/lever-mcp/internal/instrumentation"
	"github.com/talentops/lever-mcp/internal/lever"
	"github.com/talentops/lever-mcp/internal/mcp/oauth"
	"github.com/talentops/lever-mcp/internal/server"
	"github.com/talentops/lever-mcp/internal/storage"
	"github.com/talentops/lever-mcp/internal/tools/email_tools"
	"github.com/talentops/lever-mcp/internal/tools/lever_tools"
	"github.com/talentops/lever-mcp/internal/tools/oauth_tools"
)

// serveOptions holds the resolved serve configuration after flags and
// environment variables are merged.
type serveOptions struct {
	Debug     bool
	Transport string
	HTTPAddr  string
	BaseURL   string

	GoogleClientID     string
	GoogleClientSecret string

	LeverAPIKey  string
	LeverBaseURL string

	TokenDir    string
	RegistryDir string
	SessionTTL  time.Duration

	RegistrationToken string
	MaxClientsPerIP   int
	RateLimit         int
	RateLimitBurst    int
	TrustProxy        bool

	MetricsEnabled bool
	MetricsAddr    string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Lever recruiting
operations and themed Gmail email sending.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - sse: Server-Sent Events transport
  - streamable-http: Streamable HTTP transport

Lever Configuration:
  --lever-api-key flag OR LEVER_API_KEY env var
  Without a key the Lever tools return an error explaining how to enable them.

OAuth Configuration (HTTP transports):
  Base URL (required for deployed instances):
    --base-url https://your-domain.com OR MCP_BASE_URL env var
    Auto-detected for localhost (development only)

  Google credentials (required for email sending and OAuth mediation):
    --google-client-id and --google-client-secret flags
    OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars

  Client registration (RFC 7591):
    Open by default, throttled per IP. Set --oauth-registration-token
    (or MCP_OAUTH_REGISTRATION_TOKEN) to require a bearer token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolveServeEnv(&opts)
			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.Transport, "transport", "stdio", "Transport type: stdio, sse, or streamable-http")
	cmd.Flags().StringVar(&opts.HTTPAddr, "http-addr", ":8080", "HTTP server address (for sse and streamable-http transports)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "Public base URL for OAuth (HTTP transports only). Required for deployed instances. Can also use MCP_BASE_URL env var. Example: https://mcp.example.com")
	cmd.Flags().StringVar(&opts.GoogleClientID, "google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&opts.GoogleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&opts.LeverAPIKey, "lever-api-key", "", "Lever API key for recruiting tools. Can also use LEVER_API_KEY env var.")
	cmd.Flags().StringVar(&opts.LeverBaseURL, "lever-base-url", "", "Lever API base URL (default: https://api.lever.co/v1). Can also use LEVER_BASE_URL env var.")
	cmd.Flags().StringVar(&opts.TokenDir, "token-dir", "", "Directory for persisted Google tokens (default: ~/.config/lever-mcp/tokens). Can also use LEVER_MCP_TOKEN_DIR env var.")
	cmd.Flags().StringVar(&opts.RegistryDir, "registry-dir", "", "Directory for persisted OAuth client registrations (default: ~/.config/lever-mcp/clients). Can also use LEVER_MCP_REGISTRY_DIR env var.")
	cmd.Flags().DurationVar(&opts.SessionTTL, "oauth-session-ttl", 10*time.Minute, "How long pending OAuth sessions and minted authorization codes stay valid")
	cmd.Flags().StringVar(&opts.RegistrationToken, "oauth-registration-token", "", "Bearer token required for client registration. When empty, registration is open. Can also use MCP_OAUTH_REGISTRATION_TOKEN env var.")
	cmd.Flags().IntVar(&opts.MaxClientsPerIP, "oauth-max-clients-per-ip", 10, "Maximum number of clients that can be registered per IP address. Can also use MCP_OAUTH_MAX_CLIENTS_PER_IP env var.")
	cmd.Flags().IntVar(&opts.RateLimit, "rate-limit", 0, "Requests per second allowed per IP on OAuth and MCP endpoints (0 = no limit)")
	cmd.Flags().IntVar(&opts.RateLimitBurst, "rate-limit-burst", 0, "Burst size for the per-IP rate limit (default: 2x rate)")
	cmd.Flags().BoolVar(&opts.TrustProxy, "trust-proxy", false, "Trust X-Forwarded-For and X-Real-IP headers for client IPs. Only set behind a trusted proxy.")
	cmd.Flags().BoolVar(&opts.MetricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// resolveServeEnv fills unset options from environment variables
func resolveServeEnv(opts *serveOptions) {
	if opts.GoogleClientID == "" {
		opts.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if opts.GoogleClientSecret == "" {
		opts.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if opts.LeverAPIKey == "" {
		opts.LeverAPIKey = os.Getenv("LEVER_API_KEY")
	}
	if opts.LeverBaseURL == "" {
		opts.LeverBaseURL = os.Getenv("LEVER_BASE_URL")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = os.Getenv("MCP_BASE_URL")
	}
	if opts.RegistrationToken == "" {
		opts.RegistrationToken = os.Getenv("MCP_OAUTH_REGISTRATION_TOKEN")
	}
	if envMax := os.Getenv("MCP_OAUTH_MAX_CLIENTS_PER_IP"); envMax != "" {
		if maxClients, err := strconv.Atoi(envMax); err == nil && maxClients > 0 {
			opts.MaxClientsPerIP = maxClients
		}
	}
	if opts.TokenDir == "" {
		opts.TokenDir = os.Getenv("LEVER_MCP_TOKEN_DIR")
	}
	if opts.TokenDir == "" {
		opts.TokenDir = filepath.Join(dataDir(), "tokens")
	}
	if opts.RegistryDir == "" {
		opts.RegistryDir = os.Getenv("LEVER_MCP_REGISTRY_DIR")
	}
	if opts.RegistryDir == "" {
		opts.RegistryDir = filepath.Join(dataDir(), "clients")
	}
	if os.Getenv("METRICS_ENABLED") == "false" {
		opts.MetricsEnabled = false
	}
	if addr := os.Getenv("METRICS_ADDR"); addr != "" && opts.MetricsAddr == ":9090" {
		opts.MetricsAddr = addr
	}
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(opts.Debug)
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during instrumentation shutdown", "error", err)
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if opts.Transport != "stdio" && opts.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.MetricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	serverContext := server.NewServerContext(shutdownCtx, logger)
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during metrics server shutdown", "error", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("Error during server context shutdown", "error", err)
		}
	}()

	// Wire metrics and audit logging into tool instrumentation
	if provider.Enabled() {
		serverContext.SetInstrumentation(provider.Metrics(),
			instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}

	// Lever client (optional; tools report the missing key otherwise)
	if opts.LeverAPIKey != "" {
		leverClient, err := lever.NewClient(opts.LeverAPIKey, opts.LeverBaseURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create Lever client: %w", err)
		}
		serverContext.SetLeverClient(leverClient)
		logger.Info("Lever API client configured")
	} else {
		logger.Warn("LEVER_API_KEY not set, Lever tools will be unavailable")
	}

	// Per-user Google token store, persisted one JSON file per user
	googleConfig := &oauth2.Config{
		ClientID:     opts.GoogleClientID,
		ClientSecret: opts.GoogleClientSecret,
		Endpoint:     oauth2google.Endpoint,
		Scopes:       google.GmailScopes,
	}
	tokenBackend := storage.Select(opts.TokenDir, google.TokenSuffix, logger)
	serverContext.SetTokenStore(google.NewTokenStore(tokenBackend, googleConfig, logger))

	// OAuth mediator, used by the HTTP endpoints and the oauth tools
	baseURL := resolveBaseURL(opts.BaseURL, opts.HTTPAddr, opts.Transport, logger)
	oauthHandler, err := buildOAuthHandler(opts, baseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to create OAuth handler: %w", err)
	}
	serverContext.SetOAuthHandler(oauthHandler)

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("lever-mcp", version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}

	switch opts.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "sse", "streamable-http":
		return runHTTPServer(shutdownCtx, mcpSrv, serverContext, oauthHandler, opts, baseURL, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse, streamable-http)", opts.Transport)
	}
}

// newLogger builds the process logger. JSON on stderr so stdio
// transports keep stdout clean for the MCP protocol.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveBaseURL determines the public base URL, auto-detecting a
// localhost URL for development when nothing is configured.
func resolveBaseURL(baseURL, addr, transport string, logger *slog.Logger) string {
	if baseURL != "" {
		logger.Info("Using configured base URL", "base_url", baseURL)
		return baseURL
	}

	detected := fmt.Sprintf("http://%s", addr)
	if len(addr) > 0 && addr[0] == ':' {
		detected = fmt.Sprintf("http://localhost%s", addr)
	}
	if transport != "stdio" {
		logger.Info("No base URL configured, using auto-detected",
			"base_url", detected,
			"hint", "for deployed instances, set --base-url or MCP_BASE_URL")
	}
	return detected
}

// buildOAuthHandler assembles the OAuth mediator with a persistent
// client registry. Without Google credentials the mediator still serves
// metadata and registration but rejects authorization.
func buildOAuthHandler(opts serveOptions, baseURL string, logger *slog.Logger) (*oauth.Handler, error) {
	registryBackend := storage.Select(opts.RegistryDir, oauth.ClientSuffix, logger)
	registry := oauth.NewRegistry(registryBackend, logger)
	sessions := oauth.NewMemorySessionStore(opts.SessionTTL, logger)

	return oauth.NewHandler(&oauth.Config{
		Resource: baseURL,
		GoogleAuth: oauth.GoogleAuthConfig{
			ClientID:     opts.GoogleClientID,
			ClientSecret: opts.GoogleClientSecret,
		},
		RateLimit: oauth.RateLimitConfig{
			Rate:       opts.RateLimit,
			Burst:      opts.RateLimitBurst,
			TrustProxy: opts.TrustProxy,
		},
		Security: oauth.SecurityConfig{
			BootstrapRegistrationToken: opts.RegistrationToken,
			MaxClientsPerIP:            opts.MaxClientsPerIP,
		},
		SessionTTL:  opts.SessionTTL,
		RegistryDir: opts.RegistryDir,
		Logger:      logger,
	}, registry, sessions)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Lever",
			register: func() error {
				return lever_tools.RegisterLeverTools(mcpSrv, ctx)
			},
		},
		{
			name: "Email",
			register: func() error {
				return email_tools.RegisterEmailTools(mcpSrv, ctx)
			},
		},
		{
			name: "OAuth",
			register: func() error {
				return oauth_tools.RegisterOAuthTools(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	return nil
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, oauthHandler *oauth.Handler, opts serveOptions, baseURL string, logger *slog.Logger) error {
	healthChecker := server.NewHealthChecker(serverContext)

	httpServer, err := server.NewOAuthHTTPServer(mcpSrv, oauthHandler, healthChecker, opts.Transport)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	logger.Info("Starting HTTP server",
		"transport", opts.Transport,
		"addr", opts.HTTPAddr,
		"base_url", baseURL,
		"oauth_mediation", oauthHandler.Enabled(),
	)
	if !oauthHandler.Enabled() {
		logger.Warn("Google OAuth credentials not configured, clients cannot authenticate",
			"hint", "set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(opts.HTTPAddr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
