package checkout

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds one session per user. Every Begin and Reset bumps a generation
// so results of calls started before a reset can be discarded on Commit.
type Store struct {
	mu       sync.Mutex
	gen      uint64
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]entry
}

type entry struct {
	gen     uint64
	session Session
	touched time.Time
}

// NewStore creates a Store. Sessions untouched for longer than ttl are
// treated as cancelled; zero disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]entry),
	}
}

// Begin starts a fresh checkout for user, discarding any previous session.
func (s *Store) Begin(user int64) (Session, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	sess := NewSession()
	sess.ID = uuid.NewString()
	s.sessions[user] = entry{gen: s.gen, session: sess, touched: s.now()}
	return sess, s.gen
}

// Get returns the user's session and its generation. Users without an
// active session get an idle one with generation 0.
func (s *Store) Get(user int64) (Session, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[user]
	if !ok {
		return Session{State: StateIdle}, 0
	}
	if s.expired(e) {
		delete(s.sessions, user)
		return Session{State: StateIdle}, 0
	}
	return e.session, e.gen
}

// Commit stores sess if gen is still current. Terminal sessions are removed.
// It reports whether the session was stored.
func (s *Store) Commit(user int64, gen uint64, sess Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[user]
	if !ok || e.gen != gen {
		return false
	}
	if sess.State.IsTerminal() {
		delete(s.sessions, user)
		return true
	}
	s.sessions[user] = entry{gen: gen, session: sess, touched: s.now()}
	return true
}

// Reset cancels the user's checkout. Pending commits for it will fail.
func (s *Store) Reset(user int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	delete(s.sessions, user)
}

// Active reports whether user has a checkout in progress.
func (s *Store) Active(user int64) bool {
	sess, _ := s.Get(user)
	return sess.State.IsActive()
}

func (s *Store) expired(e entry) bool {
	return s.ttl > 0 && s.now().Sub(e.touched) > s.ttl
}
