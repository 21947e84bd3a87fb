package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mozpay/webpay-server/pkg/webpay/transaction"
)

const sessionCookieName = "webpay.sid"

type sessionEntry struct {
	notes     *transaction.Notes
	expiresAt time.Time
}

// sessionStore keeps per-browser configuration notes in memory, keyed by an
// opaque session id cookie. Expired sessions are purged lazily on write.
type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*sessionEntry
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		ttl:      ttl,
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *sessionStore) get(id string) (*transaction.Notes, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	return entry.notes, true
}

func (s *sessionStore) put(id string, notes *transaction.Notes) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, key)
		}
	}

	s.sessions[id] = &sessionEntry{
		notes:     notes,
		expiresAt: now.Add(s.ttl),
	}
}

func newSessionId() string {
	return uuid.New().String()
}
