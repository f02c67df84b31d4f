package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Client wraps the Gmail Users service for a single authenticated user
type Client struct {
	svc       *gmail.UsersService
	userID    string // The user this client is associated with
	signature string // Cached signature for this user
}

// NewClient creates a Gmail client on top of an OAuth-authenticated
// HTTP client. The httpClient must carry the user's Google credential.
func NewClient(ctx context.Context, userID string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("an authenticated HTTP client is required")
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:    svc.Users,
		userID: userID,
	}, nil
}

// UserID returns the user this client is associated with
func (c *Client) UserID() string {
	return c.userID
}

// encodeRFC2047 encodes a string for use in email headers according to RFC 2047
// This is necessary for non-ASCII characters (emoji in themed subjects) in headers
func encodeRFC2047(s string) string {
	needsEncoding := false
	for _, r := range s {
		if r > 127 {
			needsEncoding = true
			break
		}
	}
	if !needsEncoding {
		return s
	}
	return mime.BEncoding.Encode("UTF-8", s)
}

// GetSignature fetches the user's Gmail signature (primary send-as address)
// The signature is cached after the first fetch
func (c *Client) GetSignature() (string, error) {
	if c.signature != "" {
		return c.signature, nil
	}

	sendAs, err := c.svc.Settings.SendAs.Get("me", "me").Do()
	if err != nil {
		// If we can't fetch the signature, return empty string (not an error)
		// This allows emails to be sent even if signature fetching fails
		return "", nil
	}

	if sendAs.Signature != "" {
		c.signature = sendAs.Signature
	}

	return c.signature, nil
}

// appendSignature adds the user's signature to the email body
func (c *Client) appendSignature(body string, isHTML bool) string {
	signature, err := c.GetSignature()
	if err != nil || signature == "" {
		return body
	}

	if isHTML {
		return body + "<br><br>-- <br>" + signature
	}
	return body + "\n\n-- \n" + signature
}

// BuildRawMessage assembles an RFC 2822 message and returns it
// base64url-encoded, ready for users.messages.send. Exposed so callers
// can preview the exact payload without sending.
func BuildRawMessage(msg *EmailMessage) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}
	if msg.Subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if msg.Body == "" {
		return "", fmt.Errorf("body is required")
	}

	var emailBuilder strings.Builder

	emailBuilder.WriteString("To: ")
	emailBuilder.WriteString(strings.Join(msg.To, ", "))
	emailBuilder.WriteString("\r\n")

	if len(msg.Cc) > 0 {
		emailBuilder.WriteString("Cc: ")
		emailBuilder.WriteString(strings.Join(msg.Cc, ", "))
		emailBuilder.WriteString("\r\n")
	}

	if len(msg.Bcc) > 0 {
		emailBuilder.WriteString("Bcc: ")
		emailBuilder.WriteString(strings.Join(msg.Bcc, ", "))
		emailBuilder.WriteString("\r\n")
	}

	emailBuilder.WriteString("Subject: ")
	emailBuilder.WriteString(encodeRFC2047(msg.Subject))
	emailBuilder.WriteString("\r\n")

	if msg.IsHTML {
		emailBuilder.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	} else {
		emailBuilder.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	}
	emailBuilder.WriteString("MIME-Version: 1.0\r\n")
	emailBuilder.WriteString("\r\n")

	emailBuilder.WriteString(msg.Body)

	return base64.URLEncoding.EncodeToString([]byte(emailBuilder.String())), nil
}

// SendEmail sends an email through the Gmail API. One attempt, no
// retries; upstream errors are propagated to the caller.
func (c *Client) SendEmail(msg *EmailMessage) (string, error) {
	withSignature := *msg
	withSignature.Body = c.appendSignature(msg.Body, msg.IsHTML)

	rawMessage, err := BuildRawMessage(&withSignature)
	if err != nil {
		return "", err
	}

	sent, err := c.svc.Messages.Send("me", &gmail.Message{
		Raw: rawMessage,
	}).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	return sent.Id, nil
}
