package oauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func postTokenForm(t *testing.T, handler *Handler, form url.Values, modify ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, m := range modify {
		m(req)
	}

	w := httptest.NewRecorder()
	handler.ServeToken(w, req)
	return w
}

func decodeTokenBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	return body
}

func TestServeToken_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	w := httptest.NewRecorder()
	handler.ServeToken(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestServeToken_UnsupportedGrantType(t *testing.T) {
	handler := newTestHandler(t, nil)

	w := postTokenForm(t, handler, url.Values{"grant_type": {"password"}})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeTokenBody(t, w); body["error"] != "unsupported_grant_type" {
		t.Errorf("error = %v, want unsupported_grant_type", body["error"])
	}
}

func TestServeToken_MissingCode(t *testing.T) {
	handler := newTestHandler(t, nil)

	w := postTokenForm(t, handler, url.Values{"grant_type": {"authorization_code"}})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeTokenBody(t, w); body["error"] != "invalid_request" {
		t.Errorf("error = %v, want invalid_request", body["error"])
	}
}

func TestServeToken_DCRExchange(t *testing.T) {
	stub := &googleTokenStub{}
	handler := newTestHandler(t, stub)

	client, err := handler.Registry().Register(&ClientRegistrationRequest{
		RedirectURIs: []string{"https://client.example.com/cb"},
	}, "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := handler.Sessions().Put("minted-code-1", &Session{
		GoogleToken: map[string]any{
			"access_token":  "ya29.from-session",
			"refresh_token": "1//from-session",
			"token_type":    "Bearer",
		},
		ClientID: client.ClientID,
		Type:     SessionTypeDCRAuthCode,
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"minted-code-1"},
		"client_id":     {client.ClientID},
		"client_secret": {client.ClientSecret},
	}

	w := postTokenForm(t, handler, form)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}

	body := decodeTokenBody(t, w)
	if body["access_token"] != "ya29.from-session" {
		t.Errorf("access_token = %v, want the stored Google token", body["access_token"])
	}

	// The stored token is released, never re-fetched from Google
	if stub.calls != 0 {
		t.Errorf("Google endpoint called %d times, want 0", stub.calls)
	}

	// A minted code is exchanged at most once
	w = postTokenForm(t, handler, form)
	if w.Code != http.StatusBadRequest {
		t.Errorf("second exchange status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeTokenBody(t, w); body["error"] != "invalid_grant" {
		t.Errorf("second exchange error = %v, want invalid_grant", body["error"])
	}
}

func TestServeToken_DCRExchange_BasicAuth(t *testing.T) {
	handler := newTestHandler(t, nil)

	client, err := handler.Registry().Register(&ClientRegistrationRequest{
		RedirectURIs: []string{"https://client.example.com/cb"},
	}, "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := handler.Sessions().Put("minted-code-2", &Session{
		GoogleToken: map[string]any{"access_token": "ya29.basic", "token_type": "Bearer"},
		ClientID:    client.ClientID,
		Type:        SessionTypeDCRAuthCode,
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	w := postTokenForm(t, handler,
		url.Values{"grant_type": {"authorization_code"}, "code": {"minted-code-2"}},
		func(r *http.Request) {
			r.SetBasicAuth(client.ClientID, client.ClientSecret)
		})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if body := decodeTokenBody(t, w); body["access_token"] != "ya29.basic" {
		t.Errorf("access_token = %v", body["access_token"])
	}
}

func TestServeToken_DCRExchange_WrongClient(t *testing.T) {
	handler := newTestHandler(t, nil)

	owner, _ := handler.Registry().Register(&ClientRegistrationRequest{
		RedirectURIs: []string{"https://owner.example.com/cb"},
	}, "")
	thief, _ := handler.Registry().Register(&ClientRegistrationRequest{
		RedirectURIs: []string{"https://thief.example.com/cb"},
	}, "")

	if err := handler.Sessions().Put("minted-code-3", &Session{
		GoogleToken: map[string]any{"access_token": "ya29.owned", "token_type": "Bearer"},
		ClientID:    owner.ClientID,
		Type:        SessionTypeDCRAuthCode,
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	w := postTokenForm(t, handler, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"minted-code-3"},
		"client_id":     {thief.ClientID},
		"client_secret": {thief.ClientSecret},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeTokenBody(t, w); body["error"] != "invalid_grant" {
		t.Errorf("error = %v, want invalid_grant", body["error"])
	}

	// The failed attempt must not consume the session; the owner can
	// still complete the exchange
	w = postTokenForm(t, handler, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"minted-code-3"},
		"client_id":     {owner.ClientID},
		"client_secret": {owner.ClientSecret},
	})
	if w.Code != http.StatusOK {
		t.Errorf("owner exchange after failed attempt status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestServeToken_DCRExchange_BadCredentials(t *testing.T) {
	handler := newTestHandler(t, nil)

	client, _ := handler.Registry().Register(&ClientRegistrationRequest{
		RedirectURIs: []string{"https://client.example.com/cb"},
	}, "")

	if err := handler.Sessions().Put("minted-code-4", &Session{
		GoogleToken: map[string]any{"access_token": "ya29.guarded", "token_type": "Bearer"},
		ClientID:    client.ClientID,
		Type:        SessionTypeDCRAuthCode,
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Missing credentials
	w := postTokenForm(t, handler, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {"minted-code-4"},
	})
	if body := decodeTokenBody(t, w); body["error"] != "invalid_client" {
		t.Errorf("error = %v, want invalid_client", body["error"])
	}

	// Wrong secret
	w = postTokenForm(t, handler, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"minted-code-4"},
		"client_id":     {client.ClientID},
		"client_secret": {"wrong"},
	})
	if body := decodeTokenBody(t, w); body["error"] != "invalid_client" {
		t.Errorf("error = %v, want invalid_client", body["error"])
	}

	// Session survives both failed attempts
	if _, err := handler.Sessions().Peek("minted-code-4"); err != nil {
		t.Errorf("session should survive failed authentication: %v", err)
	}
}

func TestServeToken_ExpiredMintedCode(t *testing.T) {
	handler := newTestHandler(t, nil)

	if err := handler.Sessions().Put("minted-code-5", &Session{
		GoogleToken: map[string]any{"access_token": "ya29.stale", "token_type": "Bearer"},
		ClientID:    "dcr_whoever",
		Type:        SessionTypeDCRAuthCode,
		CreatedAt:   time.Now().Add(-2 * time.Minute).Unix(),
	}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	w := postTokenForm(t, handler, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {"minted-code-5"},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeTokenBody(t, w); body["error"] != "invalid_grant" {
		t.Errorf("error = %v, want invalid_grant", body["error"])
	}
}

func TestServeToken_DirectExchange(t *testing.T) {
	stub := &googleTokenStub{}
	handler := newTestHandler(t, stub)

	w := postTokenForm(t, handler, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {"4/google-issued-code"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := decodeTokenBody(t, w)
	if body["access_token"] != "ya29.stub-access" {
		t.Errorf("access_token = %v", body["access_token"])
	}
	if body["refresh_token"] != "1//stub-refresh" {
		t.Errorf("refresh_token = %v", body["refresh_token"])
	}

	if stub.calls != 1 {
		t.Errorf("Google endpoint called %d times, want 1", stub.calls)
	}
	if !strings.Contains(stub.lastForm, "code=4%2Fgoogle-issued-code") {
		t.Errorf("upstream request should carry the code, got %s", stub.lastForm)
	}
}

func TestServeToken_DirectExchange_UnregisteredRedirectURI(t *testing.T) {
	handler := newTestHandler(t, &googleTokenStub{})

	client, _ := handler.Registry().Register(&ClientRegistrationRequest{
		RedirectURIs: []string{"https://client.example.com/cb"},
	}, "")

	w := postTokenForm(t, handler, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"4/google-issued-code"},
		"client_id":     {client.ClientID},
		"client_secret": {client.ClientSecret},
		"redirect_uri":  {"https://evil.example.com/cb"},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeTokenBody(t, w); body["error"] != "invalid_request" {
		t.Errorf("error = %v, want invalid_request", body["error"])
	}
}

func TestServeToken_RefreshGrant(t *testing.T) {
	stub := &googleTokenStub{response: map[string]any{
		"access_token": "ya29.refreshed",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}}
	handler := newTestHandler(t, stub)

	w := postTokenForm(t, handler, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {"1//stored-refresh"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := decodeTokenBody(t, w)
	if body["access_token"] != "ya29.refreshed" {
		t.Errorf("access_token = %v", body["access_token"])
	}
	if !strings.Contains(stub.lastForm, "grant_type=refresh_token") {
		t.Errorf("upstream request should use the refresh grant, got %s", stub.lastForm)
	}
}

func TestServeToken_RefreshGrant_MissingToken(t *testing.T) {
	handler := newTestHandler(t, nil)

	w := postTokenForm(t, handler, url.Values{"grant_type": {"refresh_token"}})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeTokenBody(t, w); body["error"] != "invalid_request" {
		t.Errorf("error = %v, want invalid_request", body["error"])
	}
}

func TestNormalizeScope(t *testing.T) {
	handler, err := NewHandler(&Config{
		Resource:        "http://localhost:8080",
		SupportedScopes: []string{"scope.a", "scope.b"},
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	t.Run("no scope field", func(t *testing.T) {
		tokenData := map[string]any{"access_token": "x"}
		handler.normalizeScope(tokenData)
		if _, ok := tokenData["scope"]; ok {
			t.Error("normalizeScope should not invent a scope")
		}
	})

	t.Run("scope matches request", func(t *testing.T) {
		tokenData := map[string]any{"scope": "scope.a scope.b"}
		handler.normalizeScope(tokenData)
		if tokenData["scope"] != "scope.a scope.b" {
			t.Errorf("scope = %v, should be untouched", tokenData["scope"])
		}
		if _, ok := tokenData["_original_scope"]; ok {
			t.Error("_original_scope should not be set when nothing was over-granted")
		}
	})

	t.Run("over-granted scope is rewritten", func(t *testing.T) {
		tokenData := map[string]any{"scope": "scope.a scope.b scope.extra"}
		handler.normalizeScope(tokenData)

		if tokenData["scope"] != "scope.a scope.b" {
			t.Errorf("scope = %v, want the requested set", tokenData["scope"])
		}
		if tokenData["_original_scope"] != "scope.a scope.b scope.extra" {
			t.Errorf("_original_scope = %v, want the full grant", tokenData["_original_scope"])
		}
		note, _ := tokenData["_scope_note"].(string)
		if !strings.Contains(note, "scope.extra") {
			t.Errorf("_scope_note = %q, should name the extra scope", note)
		}
	})
}

func TestClientCredentials(t *testing.T) {
	form := url.Values{"client_id": {"form-id"}, "client_secret": {"form-secret"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_ = req.ParseForm()

	id, secret := clientCredentials(req)
	if id != "form-id" || secret != "form-secret" {
		t.Errorf("form credentials = %s/%s", id, secret)
	}

	req = httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("basic-id", "basic-secret")
	_ = req.ParseForm()

	id, secret = clientCredentials(req)
	if id != "basic-id" || secret != "basic-secret" {
		t.Errorf("basic credentials = %s/%s", id, secret)
	}
}
