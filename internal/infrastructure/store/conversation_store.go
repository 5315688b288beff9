// Package store persists the conversation collection as one serialized
// blob under a single storage key.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"chat-relay/internal/domain/chat"
	"chat-relay/internal/infrastructure/kv"
)

// DefaultStorageKey is the single key the whole collection lives under.
const DefaultStorageKey = "chat-conversations"

// ConversationStore owns the mapping from conversation identity to its
// message list and persists on every mutation. A single in-process
// writer is assumed; the mutex serializes writers within the process.
type ConversationStore struct {
	mu     sync.Mutex
	kv     kv.Store
	key    string
	logger zerolog.Logger
}

func NewConversationStore(backing kv.Store, key string, logger zerolog.Logger) *ConversationStore {
	if key == "" {
		key = DefaultStorageKey
	}
	return &ConversationStore{kv: backing, key: key, logger: logger}
}

// List returns all stored conversations, newest first. Missing or
// corrupt persisted data degrades to an empty collection rather than
// propagating.
func (s *ConversationStore) List(ctx context.Context) []*chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Insert prepends a conversation so the newest appears first.
func (s *ConversationStore) Insert(ctx context.Context, conv *chat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations := s.load(ctx)
	conversations = append([]*chat.Conversation{conv}, conversations...)
	return s.save(ctx, conversations)
}

// Replace updates the stored conversation with the same id. Unknown ids
// are a no-op.
func (s *ConversationStore) Replace(ctx context.Context, conv *chat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations := s.load(ctx)
	for i, existing := range conversations {
		if existing.ID == conv.ID {
			conversations[i] = conv
			return s.save(ctx, conversations)
		}
	}
	return nil
}

// Delete removes a conversation by id. Deleting an absent id is a no-op.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations := s.load(ctx)
	filtered := conversations[:0]
	for _, conv := range conversations {
		if conv.ID != id {
			filtered = append(filtered, conv)
		}
	}
	if len(filtered) == len(conversations) {
		return nil
	}
	return s.save(ctx, filtered)
}

// Clear removes the whole collection.
func (s *ConversationStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, s.key)
}

func (s *ConversationStore) load(ctx context.Context) []*chat.Conversation {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		return []*chat.Conversation{}
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("reading conversations from storage failed")
		return []*chat.Conversation{}
	}

	var conversations []*chat.Conversation
	if err := json.Unmarshal(raw, &conversations); err != nil {
		// Absent fields default to their zero values; anything worse is
		// treated as an empty collection.
		s.logger.Warn().Err(err).Str("key", s.key).Msg("corrupt conversation data, starting empty")
		return []*chat.Conversation{}
	}
	return conversations
}

func (s *ConversationStore) save(ctx context.Context, conversations []*chat.Conversation) error {
	raw, err := json.Marshal(conversations)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key, raw)
}
