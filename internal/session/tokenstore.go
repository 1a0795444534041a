package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenStore persists the single access-token credential. Absence is
// reported as an empty token, not an error. Only the session manager
// writes to it.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileStore keeps the token in a 0600 file under the user config dir,
// the CLI analog of browser local storage.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed token store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted token. A missing file means no token.
func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token, creating the parent directory if needed.
func (s *FileStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Clear removes the persisted token. Removing an absent file succeeds.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// MemStore is an in-memory token store for tests.
type MemStore struct {
	mu    sync.Mutex
	token string
}

func (s *MemStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
