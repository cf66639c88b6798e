package settings_test

import (
	"path/filepath"
	"testing"

	"github.com/barakshechter/clockadoodledoo/internal/settings"
)

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	s, err := settings.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.WorkspaceID() != "" || s.UserID() != "" {
		t.Errorf("got workspace %q user %q from missing file, want empty", s.WorkspaceID(), s.UserID())
	}
}

func TestSelectionsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	s, err := settings.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetWorkspace("w1", "Main"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUser("u1", "Robin"); err != nil {
		t.Fatal(err)
	}

	reopened, err := settings.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.WorkspaceID(); got != "w1" {
		t.Errorf("got workspace %q, want w1", got)
	}
	if got := reopened.WorkspaceName(); got != "Main" {
		t.Errorf("got workspace name %q, want Main", got)
	}
	if got := reopened.UserID(); got != "u1" {
		t.Errorf("got user %q, want u1", got)
	}
}

func TestResetClearsSelections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	s, err := settings.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetWorkspace("w1", "Main"); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}

	reopened, err := settings.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.WorkspaceID(); got != "" {
		t.Errorf("got workspace %q after reset, want empty", got)
	}
}
