package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/domain/chat"
	"chat-relay/internal/infrastructure/kv"
	"chat-relay/internal/infrastructure/logger"
)

func newTestStore(t *testing.T) (*ConversationStore, kv.Store) {
	t.Helper()
	backing := kv.NewMemoryStore()
	return NewConversationStore(backing, "", logger.GetLogger()), backing
}

func TestConversationStoreInsertPrependsNewest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := chat.NewConversation()
	second := chat.NewConversation()
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	conversations := store.List(ctx)
	require.Len(t, conversations, 2)
	assert.Equal(t, second.ID, conversations[0].ID)
	assert.Equal(t, first.ID, conversations[1].ID)
}

func TestConversationStoreReplacePersistsMutation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	conv := chat.NewConversation()
	require.NoError(t, store.Insert(ctx, conv))

	conv.AppendMessage(chat.NewMessage(chat.RoleUser, "What is the capital of France?"))
	require.NoError(t, store.Replace(ctx, conv))

	loaded := store.List(ctx)
	require.Len(t, loaded, 1)
	require.Len(t, loaded[0].Messages, 1)
	assert.Equal(t, "What is the capital of France?", loaded[0].Messages[0].Content)
	assert.Equal(t, "What is the capital of France?", loaded[0].Title)
}

func TestConversationStoreReplaceUnknownIDIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, chat.NewConversation()))

	ghost := chat.NewConversation()
	require.NoError(t, store.Replace(ctx, ghost))
	assert.Len(t, store.List(ctx), 1)
}

func TestConversationStoreDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	conv := chat.NewConversation()
	require.NoError(t, store.Insert(ctx, conv))

	require.NoError(t, store.Delete(ctx, conv.ID))
	assert.Empty(t, store.List(ctx))

	// A second delete of the same id changes nothing.
	require.NoError(t, store.Delete(ctx, conv.ID))
	assert.Empty(t, store.List(ctx))
}

func TestConversationStoreCorruptDataDegradesToEmpty(t *testing.T) {
	store, backing := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, backing.Set(ctx, DefaultStorageKey, []byte("{{{ definitely not json")))
	assert.Empty(t, store.List(ctx))

	// The store stays writable after encountering corrupt data.
	conv := chat.NewConversation()
	require.NoError(t, store.Insert(ctx, conv))
	conversations := store.List(ctx)
	require.Len(t, conversations, 1)
	assert.Equal(t, conv.ID, conversations[0].ID)
}

func TestConversationStoreToleratesMissingFields(t *testing.T) {
	store, backing := newTestStore(t)
	ctx := context.Background()

	// Older persisted data may lack fields added since.
	require.NoError(t, backing.Set(ctx, DefaultStorageKey, []byte(`[{"id":"conv_legacy"}]`)))

	conversations := store.List(ctx)
	require.Len(t, conversations, 1)
	assert.Equal(t, "conv_legacy", conversations[0].ID)
	assert.Empty(t, conversations[0].Messages)
}

func TestConversationStoreClear(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, chat.NewConversation()))
	require.NoError(t, store.Insert(ctx, chat.NewConversation()))
	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, store.List(ctx))
}
