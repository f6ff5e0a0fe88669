package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestStorePutGet(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Put(ctx, "c1:sessionID", "0"))
			require.NoError(t, s.Put(ctx, "c1:sessionID", "1"))

			v, ok, err := s.Get(ctx, "c1:sessionID")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "1", v)
		})
	}
}

func TestStoreListIsLiteralPrefix(t *testing.T) {
	for name, s := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Put(ctx, "a_1:0_1_question", "q"))
			require.NoError(t, s.Put(ctx, "a_1:0_1_answer", "a"))
			require.NoError(t, s.Put(ctx, "ab1:0_1_question", "other"))

			entries, err := s.List(ctx, "a_1:")
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, "a_1:0_1_answer", entries[0].Key)
			assert.Equal(t, "a_1:0_1_question", entries[1].Key)
			assert.False(t, entries[0].UpdatedAt.IsZero())
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("postgres", "")
	require.Error(t, err)

	s, err := Open("memory", "")
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
