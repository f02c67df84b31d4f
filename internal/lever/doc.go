// Package lever is a minimal REST client for the Lever recruiting API.
// Lever authenticates with HTTP Basic auth using the API key as the
// username and an empty password. Upstream failures are surfaced with
// their original status code and body so agents can see exactly what
// Lever said.
package lever
