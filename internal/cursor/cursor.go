// Package cursor persists the remote source's incremental-change token.
//
// The cursor is an opaque string representing the remote state as of the
// last fully successful sync cycle. It lives in a single dotfile inside
// the local sync root and is overwritten whole on every save. There is no
// locking: the process model assumes a single writer (the event loop's
// one worker).
package cursor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the cursor dotfile inside the sync root. The reconciler must
// exempt it from deletion during full passes.
const FileName = ".sync_cursor"

// ErrNotFound is returned by Load when no cursor has been saved yet.
// Absence is a valid state and forces a full listing.
var ErrNotFound = errors.New("cursor not found")

// Store is durable single-slot storage for the cursor token.
type Store struct {
	path string
}

// NewStore creates a store rooted at the local sync base directory.
func NewStore(basePath string) *Store {
	return &Store{path: filepath.Join(basePath, FileName)}
}

// Load reads the stored cursor. A missing file or empty content yields
// ErrNotFound, never a fatal error.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", ErrNotFound
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Save overwrites the stored cursor. The caller decides when: only after a
// fully successful cycle.
func (s *Store) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create cursor directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token), 0644); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}
