// Package settings persists the user's selections (workspace, identity)
// separately from the main config file, using a read-modify-write TOML file
// so unrelated keys survive partial updates.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/barakshechter/clockadoodledoo/internal/config"
)

type Store struct {
	mu   sync.Mutex
	path string
	data fileData
}

type fileData struct {
	Workspace selection `toml:"workspace"`
	User      selection `toml:"user"`
}

type selection struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

func DefaultPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.toml"), nil
}

// Open loads the settings file at path, starting empty when it does not
// exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	if err := toml.Unmarshal(data, &s.data); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	return s, nil
}

func (s *Store) WorkspaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Workspace.ID
}

func (s *Store) WorkspaceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Workspace.Name
}

func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.User.ID
}

func (s *Store) SetWorkspace(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Workspace = selection{ID: id, Name: name}
	return s.save()
}

func (s *Store) SetUser(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.User = selection{ID: id, Name: name}
	return s.save()
}

// Reset clears all selections, e.g. when the API key now belongs to a
// different user.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = fileData{}
	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	out, err := toml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}
