package oauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// IntentKind discriminates the routing variants of a callback state
type IntentKind int

const (
	// IntentLegacy is a state with no recognized routing tag. The
	// callback treats it as a static/legacy client: no redirect
	// substitution, no DCR bookkeeping.
	IntentLegacy IntentKind = iota

	// IntentBrowserAgent routes the callback result into the session
	// store for later pickup via the polling endpoints.
	IntentBrowserAgent

	// IntentDynamicClient routes the callback through the DCR path:
	// server-side code exchange, a freshly minted authorization code,
	// and a redirect back to the dynamic client.
	IntentDynamicClient
)

// CallbackIntent is the decoded routing information carried through
// Google in the state parameter. It is the single source of truth for
// callback routing; nothing outside this file inspects state prefixes.
type CallbackIntent struct {
	Kind IntentKind

	// SessionID identifies the polling session (IntentBrowserAgent)
	SessionID string

	// ClientID and RedirectURI identify the dynamic client and its
	// callback target (IntentDynamicClient)
	ClientID    string
	RedirectURI string

	// OriginalState is the state value the initiating client supplied.
	// It is echoed back on the final redirect (IntentDynamicClient) or
	// preserved verbatim (IntentLegacy, where it is the whole state).
	OriginalState string
}

// Wire prefixes. These are a compatibility contract with deployed
// agents and clients, so they cannot change shape.
const (
	browserAgentStatePrefix  = "browser_agent_"
	dynamicClientStatePrefix = "dcr_"
)

// dcrStatePayload is the JSON document packed into a dynamic-client state
type dcrStatePayload struct {
	OriginalState string `json:"original_state"`
	ClientID      string `json:"client_id"`
	RedirectURI   string `json:"redirect_uri"`
}

// BrowserAgentIntent builds the intent for a polling session
func BrowserAgentIntent(sessionID string) CallbackIntent {
	return CallbackIntent{Kind: IntentBrowserAgent, SessionID: sessionID}
}

// DynamicClientIntent builds the intent for a dynamic client flow
func DynamicClientIntent(clientID, redirectURI, originalState string) CallbackIntent {
	return CallbackIntent{
		Kind:          IntentDynamicClient,
		ClientID:      clientID,
		RedirectURI:   redirectURI,
		OriginalState: originalState,
	}
}

// LegacyIntent builds the pass-through intent for static clients
func LegacyIntent(state string) CallbackIntent {
	return CallbackIntent{Kind: IntentLegacy, OriginalState: state}
}

// EncodeState serializes the intent into the opaque state string
// forwarded to Google.
func (i CallbackIntent) EncodeState() (string, error) {
	switch i.Kind {
	case IntentBrowserAgent:
		if i.SessionID == "" {
			return "", fmt.Errorf("browser-agent intent requires a session ID")
		}
		return browserAgentStatePrefix + i.SessionID, nil

	case IntentDynamicClient:
		if i.ClientID == "" || i.RedirectURI == "" {
			return "", fmt.Errorf("dynamic-client intent requires client_id and redirect_uri")
		}
		payload, err := json.Marshal(dcrStatePayload{
			OriginalState: i.OriginalState,
			ClientID:      i.ClientID,
			RedirectURI:   i.RedirectURI,
		})
		if err != nil {
			return "", fmt.Errorf("failed to encode state payload: %w", err)
		}
		return dynamicClientStatePrefix + base64.RawURLEncoding.EncodeToString(payload), nil

	case IntentLegacy:
		return i.OriginalState, nil

	default:
		return "", fmt.Errorf("unknown intent kind %d", i.Kind)
	}
}

// DecodeState parses a callback state back into a CallbackIntent.
// A dcr_-tagged state that fails to decode is an error, not a legacy
// fallback: it indicates a truncated or tampered state. Everything
// without a recognized tag decodes to IntentLegacy.
func DecodeState(state string) (CallbackIntent, error) {
	if sessionID, ok := strings.CutPrefix(state, browserAgentStatePrefix); ok {
		if sessionID == "" {
			return CallbackIntent{}, fmt.Errorf("browser-agent state carries no session ID")
		}
		return BrowserAgentIntent(sessionID), nil
	}

	if blob, ok := strings.CutPrefix(state, dynamicClientStatePrefix); ok {
		raw, err := base64.RawURLEncoding.DecodeString(blob)
		if err != nil {
			return CallbackIntent{}, fmt.Errorf("failed to decode dcr state: %w", err)
		}

		var payload dcrStatePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return CallbackIntent{}, fmt.Errorf("failed to parse dcr state payload: %w", err)
		}
		if payload.ClientID == "" || payload.RedirectURI == "" {
			return CallbackIntent{}, fmt.Errorf("dcr state payload is missing client_id or redirect_uri")
		}

		return DynamicClientIntent(payload.ClientID, payload.RedirectURI, payload.OriginalState), nil
	}

	return LegacyIntent(state), nil
}
