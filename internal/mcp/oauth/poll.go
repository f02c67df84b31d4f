package oauth

import (
	"net/http"
	"time"
)

// ServePoll handles GET /oauth/poll/{session_id}.
//
// This is the pickup side of the browser-agent flow: the read is
// destructive, so the authorization code is delivered to exactly one
// caller. Agents that only want progress feedback should use the
// status endpoint instead.
func (h *Handler) ServePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		h.writeOAuthError(w, ErrInvalidRequest("session_id is required"))
		return
	}

	session, err := h.sessions.Take(sessionID)
	switch err {
	case nil:
		h.logger.Info("Delivered authorization code to polling agent",
			"session_hash", hashForLogging(sessionID))
		h.writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"code":   session.Code,
			"state":  session.State,
		})

	case ErrSessionExpired:
		h.writeJSON(w, http.StatusGone, map[string]any{
			"status": "expired",
		})

	default:
		h.writeJSON(w, http.StatusOK, map[string]any{
			"status": "pending",
		})
	}
}

// ServeStatus handles GET /oauth/status/{session_id}, the
// non-destructive peek used for UI feedback. The code itself is never
// returned here; it stays in the store for a later poll.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		h.writeOAuthError(w, ErrInvalidRequest("session_id is required"))
		return
	}

	session, err := h.sessions.Peek(sessionID)
	switch err {
	case nil:
		h.writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ready",
			"created_at": time.Unix(session.CreatedAt, 0).UTC().Format(time.RFC3339),
		})

	case ErrSessionExpired:
		h.writeJSON(w, http.StatusGone, map[string]any{
			"status": "expired",
		})

	default:
		h.writeJSON(w, http.StatusOK, map[string]any{
			"status": "pending",
		})
	}
}
