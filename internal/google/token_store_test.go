package google

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/talentops/lever-mcp/internal/storage"
)

func TestTokenStoreSetAndGet(t *testing.T) {
	store := NewTokenStore(storage.NewMemoryBackend(), nil, nil)

	require.NoError(t, store.Set("user-1", "ya29.bare-access-token"))

	tok, err := store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ya29.bare-access-token", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
}

func TestTokenStoreSetJSONCredential(t *testing.T) {
	store := NewTokenStore(storage.NewMemoryBackend(), nil, nil)

	credential := `{
		"access_token": "ya29.from-json",
		"refresh_token": "1//refresh",
		"token_type": "Bearer",
		"expires_in": 3600,
		"scope": "https://www.googleapis.com/auth/gmail.send"
	}`
	require.NoError(t, store.Set("user-1", credential))

	tok, err := store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ya29.from-json", tok.AccessToken)
	assert.Equal(t, "1//refresh", tok.RefreshToken)
	assert.True(t, tok.Valid())
}

func TestTokenStoreSetRejectsEmpty(t *testing.T) {
	store := NewTokenStore(storage.NewMemoryBackend(), nil, nil)

	assert.Error(t, store.Set("", "token"))
	assert.Error(t, store.Set("user-1", "  "))
	assert.Error(t, store.Set("user-1", "{not json"))
}

func TestTokenStoreGetMissing(t *testing.T) {
	store := NewTokenStore(storage.NewMemoryBackend(), nil, nil)

	_, err := store.Get(context.Background(), "nobody")
	assert.Error(t, err)
	assert.False(t, store.IsAuthenticated(context.Background(), "nobody"))
}

func TestTokenStoreRefreshesExpiredToken(t *testing.T) {
	var refreshCalls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"ya29.refreshed","token_type":"Bearer","expires_in":3600}`)
	}))
	defer ts.Close()

	conf := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  ts.URL + "/auth",
			TokenURL: ts.URL + "/token",
		},
	}

	store := NewTokenStore(storage.NewMemoryBackend(), conf, nil)
	// expires_in of 1 second is inside the oauth2 expiry delta, so the
	// stored token is treated as expired immediately
	credential := `{"access_token":"ya29.stale","refresh_token":"1//refresh","expires_in":1}`
	require.NoError(t, store.Set("user-1", credential))

	tok, err := store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ya29.refreshed", tok.AccessToken)
	assert.Equal(t, 1, refreshCalls)

	// The rotated token is persisted, so the next load does not refresh again
	tok, err = store.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ya29.refreshed", tok.AccessToken)
	assert.Equal(t, 1, refreshCalls)
}

func TestTokenStoreDelete(t *testing.T) {
	store := NewTokenStore(storage.NewMemoryBackend(), nil, nil)

	require.NoError(t, store.Set("user-1", "token"))
	require.NoError(t, store.Delete("user-1"))

	_, err := store.Get(context.Background(), "user-1")
	assert.Error(t, err)
}
