package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the keyed read/write contract for the serialized catalog
type Store interface {
	Load() ([]Session, error)
	Save(sessions []Session) error
}

// FileStore persists the catalog as a single JSON file
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed store at path. An empty path resolves
// to ~/.voicechat/sessions.json.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".voicechat", "sessions.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads the catalog; a missing file is an empty catalog, not an error
func (s *FileStore) Load() ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session cache: %w", err)
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		// A corrupt cache is discarded rather than wedging startup
		return nil, fmt.Errorf("failed to parse session cache: %w", err)
	}
	return sessions, nil
}

// Save writes the catalog atomically (write-then-rename)
func (s *FileStore) Save(sessions []Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to serialize session cache: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to commit session cache: %w", err)
	}
	return nil
}
