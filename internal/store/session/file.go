// Package session implements the persistence collaborator for interview
// sessions: a JSON-file store by default, Postgres when a DSN is configured.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"elicit/internal/interview"
)

const storeVersion = "1.0"

type meta struct {
	SessionID string `json:"session_id"`
	SavedAt   string `json:"saved_at"`
	Version   string `json:"version"`
}

type envelope struct {
	Meta    meta               `json:"_meta"`
	Session *interview.Session `json:"session"`
}

// FileStore keeps one JSON file per session under dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "sessions"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// path sanitizes the session id so it is safe as a filename.
func (f *FileStore) path(sessionID string) string {
	var b strings.Builder
	for _, r := range sessionID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return filepath.Join(f.dir, b.String()+".json")
}

func (f *FileStore) Save(sessionID string, s *interview.Session) error {
	env := envelope{
		Meta: meta{
			SessionID: sessionID,
			SavedAt:   time.Now().Format(time.RFC3339),
			Version:   storeVersion,
		},
		Session: s,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := f.path(sessionID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", sessionID, err)
	}
	return os.Rename(tmp, f.path(sessionID))
}

func (f *FileStore) Load(sessionID string) (*interview.Session, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path(sessionID))
	f.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interview.ErrSessionNotFound
		}
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if env.Session == nil {
		return nil, fmt.Errorf("decode session %s: empty record", sessionID)
	}
	return env.Session, nil
}

func (f *FileStore) Delete(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path(sessionID))
	if os.IsNotExist(err) {
		return interview.ErrSessionNotFound
	}
	return err
}

func (f *FileStore) List() ([]interview.StoredSessionInfo, error) {
	f.mu.Lock()
	entries, err := os.ReadDir(f.dir)
	f.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var infos []interview.StoredSessionInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, e.Name()))
		if err != nil {
			continue
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Session == nil {
			continue
		}
		infos = append(infos, describe(env))
	}
	// Newest first.
	sort.Slice(infos, func(i, j int) bool { return infos[i].SavedAt > infos[j].SavedAt })
	return infos, nil
}

func describe(env envelope) interview.StoredSessionInfo {
	s := env.Session
	name := s.Name
	if name == "" {
		if t, err := time.Parse(time.RFC3339, env.Meta.SavedAt); err == nil {
			name = "Interview vom " + t.Format("02.01.2006")
		} else {
			name = "Interview " + shortID(env.Meta.SessionID)
		}
	}
	var completedRoles []string
	for _, done := range s.CompletedInterviews {
		if done.Role != "" {
			completedRoles = append(completedRoles, done.Role)
		}
	}
	return interview.StoredSessionInfo{
		SessionID:      env.Meta.SessionID,
		SessionName:    name,
		SavedAt:        env.Meta.SavedAt,
		Phase:          s.Phase,
		Role:           s.Role,
		AnsweredCount:  len(s.Answers),
		CompletedRoles: completedRoles,
	}
}

func shortID(id string) string {
	if len(id) > 15 {
		return id[:15]
	}
	return id
}
