package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/talentops/lever-mcp/internal/storage"
)

// TokenSuffix is the file suffix used for persisted token records.
const TokenSuffix = "_token.json"

// storedToken is the persisted shape of a user's Google credential.
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// TokenStore persists Google OAuth tokens per user and hands out
// refreshed tokens. Refresh goes through the server's own oauth2
// config; a rotated token is written back so the next load starts
// from the fresh credential.
type TokenStore struct {
	backend storage.Backend
	config  *oauth2.Config
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewTokenStore creates a token store on top of the given persistence
// backend. The oauth2 config may be nil, in which case tokens are
// served as stored without refresh.
func NewTokenStore(backend storage.Backend, config *oauth2.Config, logger *slog.Logger) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = storage.NewMemoryBackend()
	}
	return &TokenStore{
		backend: backend,
		config:  config,
		logger:  logger,
	}
}

// Set stores a credential for the given user. The credential may be a
// bare access token string or a full JSON credential as returned by
// the token endpoint.
func (s *TokenStore) Set(userID, credential string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return fmt.Errorf("credential is required")
	}

	tok := storedToken{TokenType: "Bearer"}
	if strings.HasPrefix(credential, "{") {
		var wire struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int64  `json:"expires_in"`
			Scope        string `json:"scope"`
		}
		if err := json.Unmarshal([]byte(credential), &wire); err != nil {
			return fmt.Errorf("failed to parse credential JSON: %w", err)
		}
		if wire.AccessToken == "" {
			return fmt.Errorf("credential JSON has no access_token")
		}
		tok.AccessToken = wire.AccessToken
		tok.RefreshToken = wire.RefreshToken
		tok.Scope = wire.Scope
		if wire.TokenType != "" {
			tok.TokenType = wire.TokenType
		}
		if wire.ExpiresIn > 0 {
			tok.Expiry = time.Now().Add(time.Duration(wire.ExpiresIn) * time.Second)
		}
	} else {
		tok.AccessToken = credential
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Save(userID, tok)
}

// Get returns a valid token for the user, refreshing it through the
// oauth2 config when expired. Returns an error if no credential is
// stored or refresh fails.
func (s *TokenStore) Get(ctx context.Context, userID string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored storedToken
	if err := s.backend.Load(userID, &stored); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no Google credential stored for user")
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}

	if tok.Valid() || s.config == nil || tok.RefreshToken == "" {
		return tok, nil
	}

	fresh, err := s.config.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh Google token: %w", err)
	}

	if fresh.AccessToken != stored.AccessToken {
		stored.AccessToken = fresh.AccessToken
		stored.Expiry = fresh.Expiry
		if fresh.RefreshToken != "" {
			stored.RefreshToken = fresh.RefreshToken
		}
		if err := s.backend.Save(userID, stored); err != nil {
			s.logger.Warn("Failed to persist refreshed token",
				"user_id", userID,
				"error", err)
		}
	}

	return fresh, nil
}

// IsAuthenticated reports whether a usable credential exists for the user.
func (s *TokenStore) IsAuthenticated(ctx context.Context, userID string) bool {
	_, err := s.Get(ctx, userID)
	return err == nil
}

// Delete removes the stored credential for the user.
func (s *TokenStore) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Delete(userID)
}

// Client returns an HTTP client that authenticates requests with the
// user's stored credential.
func (s *TokenStore) Client(ctx context.Context, userID string) (*http.Client, error) {
	tok, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.config != nil {
		return s.config.Client(ctx, tok), nil
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), nil
}
