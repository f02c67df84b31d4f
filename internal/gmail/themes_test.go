package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListThemes(t *testing.T) {
	names := ListThemes()
	assert.Equal(t, []string{"birthday", "medieval", "pirate", "space", "superhero", "tropical"}, names)
}

func TestRenderThemeKnownThemes(t *testing.T) {
	for _, name := range ListThemes() {
		t.Run(name, func(t *testing.T) {
			subject, body, err := RenderTheme(name, "Ada", "Grace", "See you at the party")
			require.NoError(t, err)
			assert.NotEmpty(t, subject)
			assert.Contains(t, body, "<html>")
			assert.Contains(t, body, "Ada")
			assert.Contains(t, body, "Grace")
			assert.Contains(t, body, "See you at the party")
		})
	}
}

func TestRenderThemeCaseInsensitive(t *testing.T) {
	subject, _, err := RenderTheme("Pirate", "", "", "")
	require.NoError(t, err)
	assert.Contains(t, subject, "Ahoy")
}

func TestRenderThemeUnknown(t *testing.T) {
	_, _, err := RenderTheme("goth", "", "", "")
	require.Error(t, err)
	// The error names the valid set so callers can correct the request
	assert.Contains(t, err.Error(), "birthday")
	assert.Contains(t, err.Error(), "tropical")
}

func TestRenderThemeEscapesHTML(t *testing.T) {
	_, body, err := RenderTheme("birthday", "<script>alert(1)</script>", "", "")
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestRenderThemeWithoutPersonalization(t *testing.T) {
	_, body, err := RenderTheme("pirate", "", "", "")
	require.NoError(t, err)
	// Themed fallbacks fill in when no names are given
	assert.Contains(t, body, "Matey")
	assert.Contains(t, body, "Captain of the Digital Seas")
}

func TestThemeSubject(t *testing.T) {
	subject, err := ThemeSubject("space")
	require.NoError(t, err)
	assert.Contains(t, subject, "Cosmos")

	_, err = ThemeSubject("nope")
	assert.Error(t, err)
}

func TestBuildRawMessage(t *testing.T) {
	raw, err := BuildRawMessage(&EmailMessage{
		To:      []string{"a@example.com"},
		Cc:      []string{"b@example.com"},
		Subject: "Hello",
		Body:    "<p>Hi</p>",
		IsHTML:  true,
	})
	require.NoError(t, err)

	decoded := decodeBase64URL(t, raw)
	assert.Contains(t, decoded, "To: a@example.com\r\n")
	assert.Contains(t, decoded, "Cc: b@example.com\r\n")
	assert.Contains(t, decoded, "Subject: Hello\r\n")
	assert.Contains(t, decoded, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(decoded, "<p>Hi</p>"))
}

func TestBuildRawMessageValidation(t *testing.T) {
	_, err := BuildRawMessage(&EmailMessage{Subject: "s", Body: "b"})
	assert.Error(t, err)

	_, err = BuildRawMessage(&EmailMessage{To: []string{"a@example.com"}, Body: "b"})
	assert.Error(t, err)

	_, err = BuildRawMessage(&EmailMessage{To: []string{"a@example.com"}, Subject: "s"})
	assert.Error(t, err)
}

func TestBuildRawMessageEncodesSubject(t *testing.T) {
	raw, err := BuildRawMessage(&EmailMessage{
		To:      []string{"a@example.com"},
		Subject: "🎉 Happy Birthday!",
		Body:    "hi",
	})
	require.NoError(t, err)

	decoded := decodeBase64URL(t, raw)
	assert.Contains(t, decoded, "Subject: =?UTF-8?b?")
}

func decodeBase64URL(t *testing.T, raw string) string {
	t.Helper()
	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	return string(decoded)
}
