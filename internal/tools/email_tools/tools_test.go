package email_tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/oauth2"

	"github.com/talentops/lever-mcp/internal/server"
)

func newRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "send_themed_email",
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

// gmailStub answers the two Gmail API calls a themed send makes: the
// signature lookup and the message send.
type gmailStub struct {
	sentRaw string
}

func (s *gmailStub) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	switch {
	case strings.Contains(req.URL.Path, "sendAs"):
		body = `{"signature": ""}`
	case strings.Contains(req.URL.Path, "messages/send"):
		var payload struct {
			Raw string `json:"raw"`
		}
		data, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(data, &payload)
		s.sentRaw = payload.Raw
		body = `{"id": "msg-123"}`
	default:
		body = `{}`
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Request:    req,
	}, nil
}

func TestHandleSendThemedEmail_MissingArgs(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{name: "missing to", args: map[string]interface{}{"theme": "birthday"}},
		{name: "missing theme", args: map[string]interface{}{"to": "a@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handleSendThemedEmail(context.Background(), newRequest(tt.args), sc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Error("expected error result")
			}
		})
	}
}

func TestHandleSendThemedEmail_UnknownTheme(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	result, err := handleSendThemedEmail(context.Background(), newRequest(map[string]interface{}{
		"to":    "a@example.com",
		"theme": "gothic",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown theme")
	}
	text := resultText(t, result)
	if !strings.Contains(text, "gothic") || !strings.Contains(text, "birthday") {
		t.Errorf("error should name the bad theme and the valid set: %s", text)
	}
}

func TestHandleSendThemedEmail_NoCredential(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	result, err := handleSendThemedEmail(context.Background(), newRequest(map[string]interface{}{
		"to":    "a@example.com",
		"theme": "space",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result without a credential")
	}
}

func TestHandleSendThemedEmail_WithAccessToken(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	stub := &gmailStub{}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: stub})

	result, err := handleSendThemedEmail(ctx, newRequest(map[string]interface{}{
		"to":             "crew@example.com",
		"theme":          "Pirate",
		"recipient_name": "Anne",
		"sender_name":    "Mary",
		"message":        "The treasure is buried under the CI server.",
		"access_token":   "ya29.test-token",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "msg-123") {
		t.Errorf("result should carry the message ID: %s", text)
	}
	if !strings.Contains(text, "pirate") {
		t.Errorf("result should name the theme: %s", text)
	}

	if stub.sentRaw == "" {
		t.Fatal("no message was sent")
	}
	raw, err := base64.URLEncoding.DecodeString(stub.sentRaw)
	if err != nil {
		t.Fatalf("raw message is not base64url: %v", err)
	}
	rawStr := string(raw)
	if !strings.Contains(rawStr, "To: crew@example.com") {
		t.Errorf("raw message missing recipient:\n%s", rawStr)
	}
	if !strings.Contains(rawStr, "Content-Type: text/html") {
		t.Errorf("themed email should be HTML:\n%s", rawStr)
	}
	if !strings.Contains(rawStr, "Anne") || !strings.Contains(rawStr, "Mary") {
		t.Errorf("personalization missing from body:\n%s", rawStr)
	}
}

func TestHandleSendThemedEmail_SubjectOverride(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	stub := &gmailStub{}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: stub})

	result, err := handleSendThemedEmail(ctx, newRequest(map[string]interface{}{
		"to":           "a@example.com",
		"theme":        "tropical",
		"subject":      "Team offsite details",
		"access_token": "ya29.test-token",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "Team offsite details") {
		t.Errorf("subject override not applied: %s", resultText(t, result))
	}
}

func TestHandleGenerateEmailContent(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	result, err := handleGenerateEmailContent(context.Background(), newRequest(map[string]interface{}{
		"theme":          "space",
		"recipient_name": "Valentina",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	var content struct {
		Theme           string   `json:"theme"`
		Subject         string   `json:"subject"`
		Body            string   `json:"body"`
		IsHTML          bool     `json:"is_html"`
		AvailableThemes []string `json:"available_themes"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &content); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}

	if content.Theme != "space" {
		t.Errorf("theme = %q, want space", content.Theme)
	}
	if content.Subject == "" || content.Body == "" {
		t.Error("subject and body should be rendered")
	}
	if !content.IsHTML {
		t.Error("themed content should be HTML")
	}
	if !strings.Contains(content.Body, "Valentina") {
		t.Error("recipient name missing from body")
	}
	if len(content.AvailableThemes) != 6 {
		t.Errorf("expected 6 themes, got %v", content.AvailableThemes)
	}
}

func TestHandleGenerateEmailContent_UnknownTheme(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	result, err := handleGenerateEmailContent(context.Background(), newRequest(map[string]interface{}{
		"theme": "noir",
	}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown theme")
	}
}

func TestHandleListEmailThemes(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	result, err := handleListEmailThemes(context.Background(), newRequest(nil), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := resultText(t, result)
	for _, name := range []string{"birthday", "medieval", "pirate", "space", "superhero", "tropical"} {
		if !strings.Contains(text, name) {
			t.Errorf("theme %s missing from listing:\n%s", name, text)
		}
	}
}

func TestSplitEmailAddresses(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "single", input: "a@example.com", want: []string{"a@example.com"}},
		{name: "multiple with spaces", input: "a@example.com, b@example.com", want: []string{"a@example.com", "b@example.com"}},
		{name: "empty", input: "", want: nil},
		{name: "trailing comma", input: "a@example.com,", want: []string{"a@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitEmailAddresses(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitEmailAddresses(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
