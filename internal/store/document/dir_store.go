package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// DirStore keeps documents as plain files under dir/<session>/<name>.
// It is the default when no S3 endpoint is configured.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) (*DirStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "documents"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

func (s *DirStore) Put(_ context.Context, sessionID, name string, content []byte) error {
	path, err := s.path(sessionID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *DirStore) Get(_ context.Context, sessionID, name string) ([]byte, error) {
	path, err := s.path(sessionID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *DirStore) List(_ context.Context, sessionID string) ([]string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, sanitize(sessionID)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *DirStore) path(sessionID, name string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	name = strings.TrimSpace(name)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	return filepath.Join(s.dir, sanitize(sessionID), sanitize(name)), nil
}

func sanitize(s string) string {
	out := unsafePathChars.ReplaceAllString(s, "_")
	if out == "" || out == "." || out == ".." {
		out = "_"
	}
	return out
}
