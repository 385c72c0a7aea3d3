package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DrSkyle/bridgestore/pkg/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *LocalStore {
	t.Helper()
	s, ok := NewLocalStore(t.TempDir())
	require.True(t, ok)
	return s
}

func TestNewLocalStore_Unconfigured(t *testing.T) {
	s, ok := NewLocalStore("")
	assert.False(t, ok)
	assert.Nil(t, s)
}

func TestLocalStore_PutGet(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "runs/7/out.log", []byte("line")))

	got, err := s.Get(ctx, "runs/7/out.log")
	require.NoError(t, err)
	assert.Equal(t, []byte("line"), got)

	_, err = os.Stat(filepath.Join(s.Root(), "runs", "7", "out.log"))
	assert.NoError(t, err)
}

func TestLocalStore_GetMissing(t *testing.T) {
	s := newTestLocal(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"../outside", "a/../../b", "/etc/passwd", ""} {
		err := s.Put(ctx, key, []byte("x"))
		assert.Equal(t, "InvalidKey", datastore.CodeOf(err), key)

		_, err = s.Get(ctx, key)
		assert.Equal(t, "InvalidKey", datastore.CodeOf(err), key)
	}
}

func TestLocalStore_List(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"a/1", "a/2", "a/b/3", "ab/4", "c"} {
		require.NoError(t, s.Put(ctx, key, []byte("x")))
	}

	keys, err := s.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2", "a/b/3"}, keys)

	keys, err = s.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2", "a/b/3", "ab/4"}, keys)

	keys, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 5)
}

func TestLocalStore_ListMissingDirectory(t *testing.T) {
	s := newTestLocal(t)

	keys, err := s.List(context.Background(), "never/written/")
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestLocalStore_Overwrite(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("one")))
	require.NoError(t, s.Put(ctx, "k", []byte("two")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	entries, err := os.ReadDir(filepath.Join(s.Root(), stagingDir))
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files must not linger")
}

func TestLocalStore_ListsDotfiles(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"q/.bridge-notes", "q/.hidden", "q/plain"} {
		require.NoError(t, s.Put(ctx, key, []byte("hi")))
	}

	keys, err := s.List(ctx, "q/")
	require.NoError(t, err)
	assert.Equal(t, []string{"q/.bridge-notes", "q/.hidden", "q/plain"}, keys)

	keys, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 3, "staging directory must stay out of listings")
}

func TestLocalStore_GetNonObjectPaths(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "p/a.json", []byte("{}")))

	tests := map[string]string{
		"directory":  "p",
		"below file": "p/a.json/x",
	}
	for name, key := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, key)
			assert.ErrorIs(t, err, datastore.ErrNotFound)
		})
	}
}

func TestLocalStore_RejectsNonCanonicalKeys(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"r//b", "r/./b", "./b", "a/", stagingDir + "/x"} {
		err := s.Put(ctx, key, []byte("x"))
		assert.Equal(t, "InvalidKey", datastore.CodeOf(err), key)
	}

	keys, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = s.List(ctx, "r//")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
