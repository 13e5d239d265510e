package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"document-qa/internal/session"
)

type entry struct {
	sess     *session.Session
	lastUsed time.Time
}

// Sessions is the registry of live chat sessions. Sessions idle for longer
// than ttl are dropped on the next Create; a non-positive ttl keeps them.
type Sessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*entry
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, now: time.Now, sessions: make(map[string]*entry)}
}

func (r *Sessions) Create() *session.Session {
	s := session.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweep(now)
	r.sessions[s.ID] = &entry{sess: s, lastUsed: now}
	return s
}

// Get returns the session and marks it as used.
func (r *Sessions) Get(id string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.sess, true
}

func (r *Sessions) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *Sessions) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Sessions) sweep(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for id, e := range r.sessions {
		if now.Sub(e.lastUsed) > r.ttl {
			delete(r.sessions, id)
			log.Debug().Str("session", id).Msg("Session expired")
		}
	}
}
