package oauth

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestExchangeCode(t *testing.T) {
	stub := &googleTokenStub{response: map[string]any{
		"access_token":  "ya29.agent",
		"refresh_token": "1//agent",
		"token_type":    "Bearer",
		"expires_in":    3600,
	}}
	handler := newTestHandler(t, stub)

	tokenData, err := handler.ExchangeCode(context.Background(), "4/agent-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if tokenData["access_token"] != "ya29.agent" {
		t.Errorf("access_token = %v", tokenData["access_token"])
	}
	if tokenData["refresh_token"] != "1//agent" {
		t.Errorf("refresh_token = %v", tokenData["refresh_token"])
	}
	if !strings.Contains(stub.lastForm, "4%2Fagent-code") {
		t.Errorf("upstream request should carry the code, got %s", stub.lastForm)
	}
}

func TestExchangeCode_NotConfigured(t *testing.T) {
	handler, err := NewHandler(&Config{Resource: "http://localhost:8080"}, nil, nil)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	if _, err := handler.ExchangeCode(context.Background(), "4/code"); err == nil {
		t.Error("ExchangeCode() should fail when mediation is not configured")
	}
}

func TestExchangeCode_NormalizesScope(t *testing.T) {
	stub := &googleTokenStub{response: map[string]any{
		"access_token": "ya29.agent",
		"token_type":   "Bearer",
		"scope":        "scope.a scope.unrequested",
		"expires_in":   3600,
	}}

	handler, err := NewHandler(&Config{
		Resource: "http://localhost:8080",
		GoogleAuth: GoogleAuthConfig{
			ClientID:     "test-google-client",
			ClientSecret: "test-google-secret",
		},
		SupportedScopes: []string{"scope.a"},
		HTTPClient:      &http.Client{Transport: stub},
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	tokenData, err := handler.ExchangeCode(context.Background(), "4/agent-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if tokenData["scope"] != "scope.a" {
		t.Errorf("scope = %v, want the requested set", tokenData["scope"])
	}
	if tokenData["_original_scope"] != "scope.a scope.unrequested" {
		t.Errorf("_original_scope = %v", tokenData["_original_scope"])
	}
}
