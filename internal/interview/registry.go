package interview

import (
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by stores when no record exists for an id.
var ErrSessionNotFound = errors.New("session not found")

// StoredSessionInfo is a listing entry derived from persisted sessions.
type StoredSessionInfo struct {
	SessionID      string   `json:"session_id"`
	SessionName    string   `json:"session_name"`
	SavedAt        string   `json:"saved_at,omitempty"`
	Phase          Phase    `json:"phase"`
	Role           string   `json:"role,omitempty"`
	AnsweredCount  int      `json:"answered_questions"`
	CompletedRoles []string `json:"completed_roles,omitempty"`
}

// SessionStore is the persistence collaborator. Records must round-trip
// losslessly; the wire format is store-defined JSON.
type SessionStore interface {
	Load(sessionID string) (*Session, error)
	Save(sessionID string, s *Session) error
	Delete(sessionID string) error
	List() ([]StoredSessionInfo, error)
}

// Registry owns the process-wide session map. The mutex guards only the
// metadata operations (lookup, create, archive, delete); it is never held
// across a question-generation call, so a slow turn on one session cannot
// block another.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    SessionStore
}

func NewRegistry(store SessionStore) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
	}
}

// GetOrCreate returns the in-memory session for id, loading it from the
// persistence collaborator on first touch and creating a fresh one when the
// id is unknown. The second return reports whether a new session was created
// (the "create new" outcome for a failed resume).
func (r *Registry) GetOrCreate(id string) (*Session, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, false
	}
	if r.store != nil {
		if s, err := r.store.Load(id); err == nil {
			s.normalize()
			r.sessions[id] = s
			return s, false
		} else if !errors.Is(err, ErrSessionNotFound) {
			log.Printf("registry: loading session %s failed, starting fresh: %v", id, err)
		}
	}
	s := NewSession(id)
	r.sessions[id] = s
	return s, true
}

// Get returns the session without creating one. Sessions persisted by an
// earlier process are loaded from the store on first touch.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, true
	}
	if r.store != nil {
		if s, err := r.store.Load(id); err == nil {
			s.normalize()
			r.sessions[id] = s
			return s, true
		}
	}
	return nil, false
}

// Persist saves the session best-effort. Persistence failures never fail the
// in-memory turn; they are logged and the interview carries on.
func (r *Registry) Persist(s *Session) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(s.ID, s); err != nil {
		log.Printf("registry: persisting session %s failed: %v", s.ID, err)
	}
}

// Delete removes the session from memory and the store. This is the explicit
// operator action; archive-and-restart never deletes.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	if r.store == nil {
		return nil
	}
	return r.store.Delete(id)
}

// List reports persisted sessions.
func (r *Registry) List() ([]StoredSessionInfo, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.List()
}
