package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "conversations")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "conversations", []byte(`[{"id":"conv_1"}]`)))
	value, err := store.Get(ctx, "conversations")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"conv_1"}]`, string(value))

	// Overwrite replaces, never appends.
	require.NoError(t, store.Set(ctx, "conversations", []byte(`[]`)))
	value, err = store.Get(ctx, "conversations")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(value))

	require.NoError(t, store.Delete(ctx, "conversations"))
	_, err = store.Get(ctx, "conversations")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is a no-op.
	require.NoError(t, store.Delete(ctx, "conversations"))
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	original := []byte("original")
	require.NoError(t, store.Set(ctx, "key", original))
	original[0] = 'X'

	value, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "original", string(value))
}
