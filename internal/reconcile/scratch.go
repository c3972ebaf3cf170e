package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scratch is a private directory holding the task definitions rendered during
// one run. It must be removed on every exit path since it holds query text.
type Scratch struct {
	dir string
}

// NewScratch creates a fresh scratch directory under parent (os.TempDir()
// when empty).
func NewScratch(parent string) (*Scratch, error) {
	dir, err := os.MkdirTemp(parent, "powerlogger-run-*")
	if err != nil {
		return nil, fmt.Errorf("reconcile: creating scratch directory: %w", err)
	}

	return &Scratch{dir: dir}, nil
}

// Dir returns the scratch directory path.
func (s *Scratch) Dir() string {
	return s.dir
}

// WriteDefinition stores a rendered task definition as <name>.flux and
// returns its path.
func (s *Scratch) WriteDefinition(name, body string) (string, error) {
	if s == nil || s.dir == "" {
		return "", errors.New("reconcile: scratch directory not initialized")
	}

	path := filepath.Join(s.dir, definitionFileName(name))
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		return "", fmt.Errorf("reconcile: writing task definition %q: %w", name, err)
	}

	return path, nil
}

// Remove deletes the scratch directory and everything in it. Safe to call
// more than once.
func (s *Scratch) Remove() error {
	if s == nil || s.dir == "" {
		return nil
	}

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("reconcile: removing scratch directory: %w", err)
	}

	return nil
}

// definitionFileName maps a task name to a safe file name.
func definitionFileName(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)

	if safe == "" || strings.Trim(safe, ".") == "" {
		safe = "task"
	}

	return safe + ".flux"
}
