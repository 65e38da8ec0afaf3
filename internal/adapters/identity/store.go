// Package identity persists the device's current user id in a small JSON file.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

type record struct {
	UserID domain.UserID `json:"userId"`
}

var (
	_ core.IdentityStore = (*FileStore)(nil)
	_ core.IdentityStore = Static("")
)

// FileStore implements core.IdentityStore. The file is read lazily and cached.
type FileStore struct {
	path string

	mu     sync.RWMutex
	loaded bool
	id     domain.UserID
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) CurrentUserID() (domain.UserID, bool) {
	s.mu.RLock()
	if s.loaded {
		id := s.id
		s.mu.RUnlock()
		return id, id != ""
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.id = s.readLocked()
		s.loaded = true
	}
	return s.id, s.id != ""
}

func (s *FileStore) readLocked() domain.UserID {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("module", "adapters.identity").Str("path", s.path).Msg("read identity")
		}
		return ""
	}
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		log.Warn().Err(err).Str("module", "adapters.identity").Str("path", s.path).Msg("bad identity file")
		return ""
	}
	if domain.ValidateUserID(r.UserID) != nil {
		return ""
	}
	return r.UserID
}

// Set validates and persists id, replacing the file atomically.
func (s *FileStore) Set(id domain.UserID) error {
	if err := domain.ValidateUserID(id); err != nil {
		return err
	}
	b, err := json.Marshal(record{UserID: id})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace identity: %w", err)
	}
	s.id = id
	s.loaded = true
	log.Info().Str("module", "adapters.identity").Str("user_id", string(id)).Msg("identity set")
	return nil
}

// Clear forgets the stored identity.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	s.id = ""
	s.loaded = true
	return nil
}

// Static is a fixed identity, for tests and one-off runs.
type Static domain.UserID

func (s Static) CurrentUserID() (domain.UserID, bool) { return domain.UserID(s), s != "" }
