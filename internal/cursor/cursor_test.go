package cursor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("  \n"), 0644))

	s := NewStore(dir)
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.Save("AAAbbbCCC123"))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "AAAbbbCCC123", got)

	// Overwrite semantics, no append.
	require.NoError(t, s.Save("next"))
	got, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "next", got)
}

func TestSaveCreatesBaseDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "not", "yet", "there")
	s := NewStore(base)

	require.NoError(t, s.Save("tok"))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
}
