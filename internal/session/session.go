package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"sitecheckout/internal/catalog"
	"sitecheckout/internal/logger"
	"sitecheckout/internal/order"
	"sitecheckout/internal/search"
)

var ErrNotFound = errors.New("checkout session not found or expired")

// Session is one open checkout page: its reference data, pending batch and name
// suggestions.
type Session struct {
	ID      string
	Cache   *catalog.Cache
	Suggest *search.Suggester

	mu   sync.Mutex
	form *order.Form

	// lastSeen is unix nanoseconds, kept apart from mu so a long Do never blocks lookups.
	lastSeen atomic.Int64
}

// Do runs fn with exclusive access to the form so edits apply one at a time.
func (s *Session) Do(fn func(f *order.Form) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.form)
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Store keeps the open sessions in memory.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetClock replaces the time source; tests use it to expire sessions.
func (st *Store) SetClock(now func() time.Time) {
	st.mu.Lock()
	st.now = now
	st.mu.Unlock()
}

func (st *Store) clock() func() time.Time {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.now
}

// Create opens a session and loads its reference data from src, once.
func (st *Store) Create(ctx context.Context, src catalog.Source, fetcher search.Fetcher, today func() time.Time) *Session {
	cache := catalog.NewCache()
	cache.Load(ctx, src)

	now := st.clock()
	s := &Session{
		ID:      uuid.NewString(),
		Cache:   cache,
		Suggest: search.NewSuggester(fetcher),
		form:    order.NewForm(cache.Catalog(), today),
	}
	s.touch(now())

	st.mu.Lock()
	st.sessions[s.ID] = s
	count := len(st.sessions)
	st.mu.Unlock()

	logger.LogInfo("Checkout session %s opened (%d active)", s.ID, count)
	return s
}

// Get returns a live session and marks it as used.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	now := st.now
	st.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if now().Sub(s.idleSince()) > st.ttl {
		st.Delete(id)
		return nil, ErrNotFound
	}
	s.touch(now())
	return s, nil
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// CleanExpired drops sessions idle longer than the TTL and returns how many went.
func (st *Store) CleanExpired() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := st.now().Add(-st.ttl)
	removed := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired sessions every interval until ctx is done.
func (st *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := st.CleanExpired(); n > 0 {
					logger.LogInfo("Session cleanup completed - %d expired sessions removed", n)
				}
			}
		}
	}()
}
