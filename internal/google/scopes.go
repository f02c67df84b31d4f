package google

import gmail "google.golang.org/api/gmail/v1"

// GmailScopes are the Google OAuth scopes this server requests and
// advertises in its discovery metadata. Sending themed email needs
// gmail.send; gmail.compose covers draft creation for previews.
var GmailScopes = []string{
	gmail.GmailSendScope,
	gmail.GmailComposeScope,
}
