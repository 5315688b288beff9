package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/config"
	"chat-relay/internal/domain/chat"
	"chat-relay/internal/infrastructure/kv"
	"chat-relay/internal/infrastructure/logger"
	"chat-relay/internal/infrastructure/store"
)

func sseRecord(t *testing.T, record map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(record)
	require.NoError(t, err)
	return fmt.Sprintf("data: %s\n\n", payload)
}

func relayServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func contentHandler(t *testing.T, fragments ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, fragment := range fragments {
			_, _ = w.Write([]byte(sseRecord(t, map[string]any{"content": fragment, "done": false})))
		}
		_, _ = w.Write([]byte(sseRecord(t, map[string]any{"content": "", "done": true})))
	}
}

func newTestController(t *testing.T, relayURL string) (*Controller, *store.ConversationStore) {
	t.Helper()
	cfg := &config.Config{
		RelayURL:    relayURL,
		HTTPTimeout: 5 * time.Second,
	}
	conversations := store.NewConversationStore(kv.NewMemoryStore(), "", logger.GetLogger())
	return NewController(cfg, conversations), conversations
}

func TestSendMessageStreamsAndPersists(t *testing.T) {
	server := relayServer(t, contentHandler(t, "Hel", "lo", " there"))
	controller, conversations := newTestController(t, server.URL)

	var mu sync.Mutex
	var fragments []string
	controller.SetOnFragment(func(_, _, content string) {
		mu.Lock()
		fragments = append(fragments, content)
		mu.Unlock()
	})

	ctx := context.Background()
	require.NoError(t, controller.SendMessage(ctx, "Hello"))

	assert.Equal(t, StateIdle, controller.State())
	assert.Equal(t, []string{"Hel", "lo", " there"}, fragments)

	current := controller.Current()
	require.NotNil(t, current)
	assert.Equal(t, "Hello", current.Title)
	require.Len(t, current.Messages, 2)
	assert.Equal(t, chat.RoleUser, current.Messages[0].Role)
	assert.Equal(t, "Hello", current.Messages[0].Content)
	assert.Equal(t, chat.RoleAssistant, current.Messages[1].Role)
	assert.Equal(t, "Hello there", current.Messages[1].Content)
	assert.False(t, current.Messages[1].Streaming)

	// The finished turn is what persistence holds as well.
	stored := conversations.List(ctx)
	require.Len(t, stored, 1)
	require.Len(t, stored[0].Messages, 2)
	assert.Equal(t, "Hello there", stored[0].Messages[1].Content)
}

func TestSendMessageRejectsInvalidInput(t *testing.T) {
	server := relayServer(t, contentHandler(t))
	controller, conversations := newTestController(t, server.URL)
	ctx := context.Background()

	err := controller.SendMessage(ctx, "   \n\t  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")

	// The limit is exclusive: a trimmed length of exactly 2000 is too long.
	err = controller.SendMessage(ctx, strings.Repeat("x", 2000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shorter than 2000 characters")

	// Rejected input never creates a conversation.
	assert.Empty(t, conversations.List(ctx))
	assert.Equal(t, StateIdle, controller.State())
}

func TestSendMessageAcceptsMaxLengthInput(t *testing.T) {
	server := relayServer(t, contentHandler(t, "ok"))
	controller, _ := newTestController(t, server.URL)

	require.NoError(t, controller.SendMessage(context.Background(), strings.Repeat("x", 1999)))
}

func TestSendMessageErrorRecordFailsTurn(t *testing.T) {
	var failNext atomic.Bool
	failNext.Store(true)
	server := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if failNext.Load() {
			_, _ = w.Write([]byte(sseRecord(t, map[string]any{"content": "I"})))
			_, _ = w.Write([]byte(sseRecord(t, map[string]any{"error": "rate limit exceeded", "done": true})))
			return
		}
		contentHandler(t, "recovered")(w, r)
	})
	controller, _ := newTestController(t, server.URL)
	ctx := context.Background()

	err := controller.SendMessage(ctx, "first try")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Equal(t, StateError, controller.State())

	current := controller.Current()
	require.NotNil(t, current)
	require.Len(t, current.Messages, 2)
	assert.Equal(t, "Error: rate limit exceeded", current.Messages[1].Content)
	assert.False(t, current.Messages[1].Streaming)

	// A failed turn does not wedge the controller.
	failNext.Store(false)
	require.NoError(t, controller.SendMessage(ctx, "second try"))
	assert.Equal(t, StateIdle, controller.State())

	current = controller.Current()
	require.Len(t, current.Messages, 4)
	assert.Equal(t, "recovered", current.Messages[3].Content)
}

func TestSendMessageRelayStatusFailure(t *testing.T) {
	server := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"messages array is required"}`))
	})
	controller, _ := newTestController(t, server.URL)

	err := controller.SendMessage(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "messages array is required")
	assert.Equal(t, StateError, controller.State())
}

func TestSendMessageTruncatedStreamFailsTurn(t *testing.T) {
	server := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(sseRecord(t, map[string]any{"content": "cut "})))
		// Connection ends without a terminal record.
	})
	controller, _ := newTestController(t, server.URL)

	err := controller.SendMessage(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended unexpectedly")

	current := controller.Current()
	require.NotNil(t, current)
	assert.Contains(t, current.Messages[1].Content, "Error: ")
}

func TestSendMessageRejectedWhileStreaming(t *testing.T) {
	release := make(chan struct{})
	firstFragment := make(chan struct{})
	server := relayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte(sseRecord(t, map[string]any{"content": "waiting"})))
		flusher.Flush()
		<-release
		_, _ = w.Write([]byte(sseRecord(t, map[string]any{"content": "", "done": true})))
	})
	controller, _ := newTestController(t, server.URL)

	var once sync.Once
	controller.SetOnFragment(func(_, _, _ string) {
		once.Do(func() { close(firstFragment) })
	})

	done := make(chan error, 1)
	go func() {
		done <- controller.SendMessage(context.Background(), "slow one")
	}()

	<-firstFragment
	assert.Equal(t, StateStreaming, controller.State())

	err := controller.SendMessage(context.Background(), "impatient")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already streaming")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, controller.State())
}

func TestSelectFallsBackToMostRecent(t *testing.T) {
	server := relayServer(t, contentHandler(t))
	controller, _ := newTestController(t, server.URL)
	ctx := context.Background()

	older, err := controller.NewConversation(ctx)
	require.NoError(t, err)
	newer, err := controller.NewConversation(ctx)
	require.NoError(t, err)

	selected := controller.Select(ctx, older.ID)
	require.NotNil(t, selected)
	assert.Equal(t, older.ID, selected.ID)

	// An unknown id falls back to the most recently created conversation.
	selected = controller.Select(ctx, "conv_missing")
	require.NotNil(t, selected)
	assert.Equal(t, newer.ID, selected.ID)
}

func TestDeleteActiveSelectsNext(t *testing.T) {
	server := relayServer(t, contentHandler(t))
	controller, conversations := newTestController(t, server.URL)
	ctx := context.Background()

	first, err := controller.NewConversation(ctx)
	require.NoError(t, err)
	second, err := controller.NewConversation(ctx)
	require.NoError(t, err)

	require.NoError(t, controller.Delete(ctx, second.ID))
	current := controller.Current()
	require.NotNil(t, current)
	assert.Equal(t, first.ID, current.ID)

	require.NoError(t, controller.Delete(ctx, first.ID))
	assert.Nil(t, controller.Current())
	assert.Empty(t, conversations.List(ctx))
}

func TestNewControllerResumesMostRecentConversation(t *testing.T) {
	conversations := store.NewConversationStore(kv.NewMemoryStore(), "", logger.GetLogger())
	ctx := context.Background()

	older := chat.NewConversation()
	newer := chat.NewConversation()
	require.NoError(t, conversations.Insert(ctx, older))
	require.NoError(t, conversations.Insert(ctx, newer))

	controller := NewController(&config.Config{HTTPTimeout: time.Second}, conversations)
	current := controller.Current()
	require.NotNil(t, current)
	assert.Equal(t, newer.ID, current.ID)
}

func TestSendMessageStartsConversationOnDemand(t *testing.T) {
	server := relayServer(t, contentHandler(t, "hi"))
	controller, conversations := newTestController(t, server.URL)
	ctx := context.Background()

	require.Nil(t, controller.Current())
	require.NoError(t, controller.SendMessage(ctx, "no conversation yet"))

	require.NotNil(t, controller.Current())
	assert.Len(t, conversations.List(ctx), 1)
}
