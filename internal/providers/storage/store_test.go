package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kv interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, entries map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

func exercise(t *testing.T, s kv) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMany(ctx, map[string]string{"a": "1", "b": "2"}))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, s.SetMany(ctx, map[string]string{"a": "3"}))
	v, _, _ = s.Get(ctx, "a")
	assert.Equal(t, "3", v)
	v, _, _ = s.Get(ctx, "b")
	assert.Equal(t, "2", v, "merge keeps other keys")

	require.NoError(t, s.Delete(ctx, "a", "nope"))
	_, ok, _ = s.Get(ctx, "a")
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewMemory().Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preload.json")
	exercise(t, NewFile(path))

	// Survives reopening
	s1 := NewFile(path)
	require.NoError(t, s1.SetMany(context.Background(), map[string]string{"k": "v"}))
	v, ok, err := NewFile(path).Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preload.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewFile(path)
	_, _, err := s.Get(context.Background(), "k")
	assert.Error(t, err)

	// Writes recover the document
	require.NoError(t, s.SetMany(context.Background(), map[string]string{"k": "v"}))
	v, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
