// Package gmail sends themed HTML email through the Gmail API on
// behalf of an authenticated user. Messages are assembled in RFC 2822
// format and submitted base64url-encoded via users.messages.send.
package gmail
