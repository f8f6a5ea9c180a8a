package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"massagebook/internal/metrics"
)

var ErrSessionNotFound = errors.New("session not found")

const defaultSessionTimeout = 30 * time.Minute

// SessionStore keeps one wizard per session id.
type SessionStore struct {
	sessions  map[string]*Wizard
	mu        sync.RWMutex
	timeout   time.Duration
	newWizard func(id string) *Wizard
}

// NewSessionStore creates a store whose wizards expire after timeout of inactivity.
func NewSessionStore(timeout time.Duration, newWizard func(id string) *Wizard) *SessionStore {
	if timeout <= 0 {
		timeout = defaultSessionTimeout
	}
	return &SessionStore{
		sessions:  make(map[string]*Wizard),
		timeout:   timeout,
		newWizard: newWizard,
	}
}

// Create starts a wizard under a fresh random id.
func (ss *SessionStore) Create() *Wizard {
	return ss.Reset(uuid.NewString())
}

// Get returns a live wizard. Expired wizards are dropped and reported as not found.
func (ss *SessionStore) Get(id string) (*Wizard, error) {
	ss.mu.RLock()
	w, ok := ss.sessions[id]
	ss.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if w.IsExpired(ss.timeout) {
		ss.deleteIfSame(id, w)
		return nil, ErrSessionNotFound
	}
	return w, nil
}

// deleteIfSame removes id only while it still maps to w, so a wizard
// installed concurrently under the same id survives.
func (ss *SessionStore) deleteIfSame(id string, w *Wizard) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if cur, ok := ss.sessions[id]; !ok || cur != w {
		return false
	}
	w.Close()
	delete(ss.sessions, id)
	return true
}

// GetOrCreate returns the live wizard for id or starts a new one.
func (ss *SessionStore) GetOrCreate(id string) *Wizard {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	w, ok := ss.sessions[id]
	if ok && !w.IsExpired(ss.timeout) {
		return w
	}
	if ok {
		w.Close()
	}

	w = ss.newWizard(id)
	ss.sessions[id] = w
	return w
}

// Reset replaces the wizard for id with a new one.
func (ss *SessionStore) Reset(id string) *Wizard {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if old, ok := ss.sessions[id]; ok {
		old.Close()
	}
	w := ss.newWizard(id)
	ss.sessions[id] = w
	return w
}

// Delete removes a session. It reports whether one existed.
func (ss *SessionStore) Delete(id string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	w, ok := ss.sessions[id]
	if ok {
		w.Close()
		delete(ss.sessions, id)
	}
	return ok
}

// Len returns the number of stored sessions, expired or not.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for id, w := range ss.sessions {
		if w.IsExpired(ss.timeout) {
			w.Close()
			delete(ss.sessions, id)
			removed++
		}
	}
	metrics.SetActiveSessions(len(ss.sessions))
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (ss *SessionStore) RunCleanup(ctx context.Context, interval time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ss.Cleanup(); n > 0 {
				logger.Debug().Int("removed", n).Int("active", ss.Len()).Msg("expired booking sessions removed")
			}
		}
	}
}
