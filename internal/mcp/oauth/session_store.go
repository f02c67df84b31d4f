package oauth

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Session is a pending OAuth result awaiting pickup. There are two
// shapes: a browser-agent session carries the raw Google authorization
// code for a polling agent, and a DCR session carries an already
// exchanged Google token awaiting the dynamic client's token request.
type Session struct {
	// Code is the Google authorization code (browser-agent sessions)
	Code string `json:"code,omitempty"`

	// State is the wire state that produced this session (browser-agent sessions)
	State string `json:"state,omitempty"`

	// GoogleToken is the token response fetched from Google (DCR sessions)
	GoogleToken map[string]any `json:"google_token_data,omitempty"`

	// ClientID is the dynamic client the session is bound to (DCR sessions)
	ClientID string `json:"client_id,omitempty"`

	// Type is SessionTypeDCRAuthCode for DCR sessions, empty otherwise
	Type string `json:"type,omitempty"`

	// CreatedAt is the Unix timestamp of session creation
	CreatedAt int64 `json:"timestamp"`
}

// SessionTypeDCRAuthCode marks sessions created by the DCR callback path
const SessionTypeDCRAuthCode = "dcr_auth_code"

// IsDCR reports whether this is a DCR authorization code session
func (s *Session) IsDCR() bool {
	return s.Type == SessionTypeDCRAuthCode
}

// ErrSessionNotFound is returned when no session exists for a key
var ErrSessionNotFound = fmt.Errorf("session not found")

// ErrSessionExpired is returned when a session exists but is past its TTL.
// The expired session is deleted as a side effect of the failed read.
var ErrSessionExpired = fmt.Errorf("session expired")

// SessionStore holds pending OAuth sessions keyed by session ID or
// server-minted authorization code. Reads via Take are destructive:
// a session is delivered to exactly one caller. Expiry is checked
// lazily on every read rather than by a background sweep.
type SessionStore interface {
	// Put stores a session under the given key
	Put(key string, session *Session) error

	// Take returns the session and deletes it in the same operation.
	// Returns ErrSessionNotFound or ErrSessionExpired.
	Take(key string) (*Session, error)

	// Peek returns the session without consuming it.
	// Returns ErrSessionNotFound or ErrSessionExpired.
	Peek(key string) (*Session, error)

	// PurgeExpired removes every expired session and returns the count removed
	PurgeExpired() int
}

// MemorySessionStore is the in-memory SessionStore. A single mutex
// guards the map so the lookup-and-delete in Take is atomic.
type MemorySessionStore struct {
	sessions map[string]*Session
	ttl      time.Duration
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewMemorySessionStore creates a session store with the given TTL.
// A zero TTL means DefaultSessionTTL.
func NewMemorySessionStore(ttl time.Duration, logger *slog.Logger) *MemorySessionStore {
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
	}
}

// Put stores a session under the given key
func (s *MemorySessionStore) Put(key string, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.CreatedAt == 0 {
		session.CreatedAt = time.Now().Unix()
	}
	s.sessions[key] = session

	s.logger.Debug("Stored OAuth session",
		"key_hash", hashForLogging(key),
		"type", session.Type,
	)

	return nil
}

// Take returns the session and deletes it under one lock acquisition,
// so a code can never be delivered twice.
func (s *MemorySessionStore) Take(key string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[key]
	if !exists {
		return nil, ErrSessionNotFound
	}

	delete(s.sessions, key)

	if s.expired(session) {
		s.logger.Debug("Discarded expired OAuth session on take",
			"key_hash", hashForLogging(key))
		return nil, ErrSessionExpired
	}

	s.logger.Debug("Consumed OAuth session",
		"key_hash", hashForLogging(key),
		"type", session.Type,
	)

	return session, nil
}

// Peek returns the session without consuming it. Expired sessions are
// purged on access and reported as expired.
func (s *MemorySessionStore) Peek(key string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[key]
	if !exists {
		return nil, ErrSessionNotFound
	}

	if s.expired(session) {
		delete(s.sessions, key)
		return nil, ErrSessionExpired
	}

	return session, nil
}

// PurgeExpired removes every expired session and returns the count removed
func (s *MemorySessionStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for key, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, key)
			purged++
		}
	}

	if purged > 0 {
		s.logger.Debug("Purged expired OAuth sessions", "count", purged)
	}

	return purged
}

// Len returns the number of stored sessions, including not-yet-purged
// expired ones. Used by diagnostics.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemorySessionStore) expired(session *Session) bool {
	return time.Now().Unix() > session.CreatedAt+int64(s.ttl.Seconds())
}
