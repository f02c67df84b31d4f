package oauth_tools

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/oauth2"

	"github.com/talentops/lever-mcp/internal/google"
	"github.com/talentops/lever-mcp/internal/mcp/oauth"
	"github.com/talentops/lever-mcp/internal/server"
	"github.com/talentops/lever-mcp/internal/storage"
)

func newRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "oauth_tool",
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

// tokenEndpointStub answers every request as if it were Google's token
// endpoint.
type tokenEndpointStub struct {
	response map[string]any
	calls    int
}

func (s *tokenEndpointStub) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	body, _ := json.Marshal(s.response)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, nil
}

func newTestContext(t *testing.T, httpClient *http.Client) *server.ServerContext {
	t.Helper()

	handler, err := oauth.NewHandler(&oauth.Config{
		Resource: "http://localhost:8080",
		GoogleAuth: oauth.GoogleAuthConfig{
			ClientID:     "test-client-id",
			ClientSecret: "test-client-secret",
		},
		SessionTTL: time.Minute,
		HTTPClient: httpClient,
	}, nil, nil)
	if err != nil {
		t.Fatalf("failed to create OAuth handler: %v", err)
	}

	sc := server.NewServerContext(context.Background(), nil)
	t.Cleanup(func() { _ = sc.Shutdown() })
	sc.SetOAuthHandler(handler)

	return sc
}

func TestHandleGetOAuthURL(t *testing.T) {
	sc := newTestContext(t, nil)

	result, err := handleGetOAuthURL(context.Background(), newRequest(nil), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	var response struct {
		AuthURL   string `json:"auth_url"`
		SessionID string `json:"session_id"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &response); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}

	if response.SessionID == "" {
		t.Error("session_id should not be empty")
	}
	want := "http://localhost:8080/authorize?session_id=" + response.SessionID
	if response.AuthURL != want {
		t.Errorf("auth_url = %q, want %q", response.AuthURL, want)
	}
	if response.ExpiresIn != 60 {
		t.Errorf("expires_in = %d, want 60", response.ExpiresIn)
	}
}

func TestHandleGetOAuthURL_NotConfigured(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	result, err := handleGetOAuthURL(context.Background(), newRequest(nil), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when OAuth is not configured")
	}
	if !strings.Contains(resultText(t, result), "GOOGLE_CLIENT_ID") {
		t.Errorf("error should explain the missing configuration: %s", resultText(t, result))
	}
}

func TestHandleCheckOAuthStatus(t *testing.T) {
	sc := newTestContext(t, nil)

	// Pending before the callback arrives
	result, err := handleCheckOAuthStatus(context.Background(), newRequest(map[string]interface{}{
		"session_id": "sess-1",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resultText(t, result), "pending") {
		t.Errorf("expected pending status: %s", resultText(t, result))
	}

	// Ready once the session holds a code. Peek must not consume it.
	sessions := sc.OAuthHandler().Sessions()
	if err := sessions.Put("sess-1", &oauth.Session{Code: "auth-code", CreatedAt: time.Now().Unix()}); err != nil {
		t.Fatalf("failed to store session: %v", err)
	}

	for i := 0; i < 2; i++ {
		result, err = handleCheckOAuthStatus(context.Background(), newRequest(map[string]interface{}{
			"session_id": "sess-1",
		}), sc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(resultText(t, result), "ready") {
			t.Errorf("expected ready status on check %d: %s", i, resultText(t, result))
		}
	}
}

func TestHandleCheckOAuthStatus_MissingSessionID(t *testing.T) {
	sc := newTestContext(t, nil)

	result, err := handleCheckOAuthStatus(context.Background(), newRequest(map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing session_id")
	}
}

func TestHandlePollOAuthCode_DeliversOnce(t *testing.T) {
	sc := newTestContext(t, nil)

	sessions := sc.OAuthHandler().Sessions()
	if err := sessions.Put("sess-2", &oauth.Session{Code: "auth-code-xyz", CreatedAt: time.Now().Unix()}); err != nil {
		t.Fatalf("failed to store session: %v", err)
	}

	result, err := handlePollOAuthCode(context.Background(), newRequest(map[string]interface{}{
		"session_id": "sess-2",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var response struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &response); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if response.Status != "success" || response.Code != "auth-code-xyz" {
		t.Errorf("unexpected response: %+v", response)
	}

	// The read is destructive: a second poll reports pending
	result, err = handlePollOAuthCode(context.Background(), newRequest(map[string]interface{}{
		"session_id": "sess-2",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resultText(t, result), "pending") {
		t.Errorf("second poll should report pending: %s", resultText(t, result))
	}
}

func TestHandleExchangeOAuthCode(t *testing.T) {
	stub := &tokenEndpointStub{
		response: map[string]any{
			"access_token":  "ya29.exchanged",
			"refresh_token": "1//refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         strings.Join(google.GmailScopes, " "),
		},
	}
	sc := newTestContext(t, &http.Client{Transport: stub})

	tokens := google.NewTokenStore(storage.NewMemoryBackend(), &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
	}, nil)
	sc.SetTokenStore(tokens)

	result, err := handleExchangeOAuthCode(context.Background(), newRequest(map[string]interface{}{
		"code":    "auth-code-abc",
		"user_id": "alice",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if stub.calls != 1 {
		t.Errorf("expected 1 token endpoint call, got %d", stub.calls)
	}
	if !strings.Contains(resultText(t, result), "alice") {
		t.Errorf("result should name the user: %s", resultText(t, result))
	}

	if !tokens.IsAuthenticated(context.Background(), "alice") {
		t.Error("credential should be stored for the user")
	}

	token, err := tokens.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("failed to load stored token: %v", err)
	}
	if token.AccessToken != "ya29.exchanged" {
		t.Errorf("access token = %q, want ya29.exchanged", token.AccessToken)
	}
	if token.RefreshToken != "1//refresh" {
		t.Errorf("refresh token = %q, want 1//refresh", token.RefreshToken)
	}
}

func TestHandleExchangeOAuthCode_MissingCode(t *testing.T) {
	sc := newTestContext(t, nil)

	result, err := handleExchangeOAuthCode(context.Background(), newRequest(map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing code")
	}
}
