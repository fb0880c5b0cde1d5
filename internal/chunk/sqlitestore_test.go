package chunk

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSqliteStore(t *testing.T) *SqliteStore {
	t.Helper()
	s, err := OpenSqliteStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSqliteStorePutTryGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestSqliteStore(t)

	require.NoError(t, s.Put(ctx, "chunk-a", []byte("payload")))

	data, ok, err := s.TryGet(ctx, "chunk-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), data)
}

func TestSqliteStoreTryGetMissingKeyIsNotAnError(t *testing.T) {
	s := openTestSqliteStore(t)

	data, ok, err := s.TryGet(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestSqliteStoreExists(t *testing.T) {
	ctx := context.Background()
	s := openTestSqliteStore(t)

	exists, err := s.Exists(ctx, "chunk-b")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Put(ctx, "chunk-b", []byte("x")))

	exists, err = s.Exists(ctx, "chunk-b")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSqliteStorePutOverwritesExistingKey(t *testing.T) {
	ctx := context.Background()
	s := openTestSqliteStore(t)

	require.NoError(t, s.Put(ctx, "chunk-c", []byte("first")))
	require.NoError(t, s.Put(ctx, "chunk-c", []byte("second")))

	data, ok, err := s.TryGet(ctx, "chunk-c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), data)
}

func TestSqliteStoreCompressesPayloadsAboveThreshold(t *testing.T) {
	ctx := context.Background()
	s := openTestSqliteStore(t)

	large := []byte(strings.Repeat("a", compressThreshold+1))
	require.NoError(t, s.Put(ctx, "chunk-d", large))

	data, ok, err := s.TryGet(ctx, "chunk-d")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, large, data, "compression must be transparent to callers")
}
