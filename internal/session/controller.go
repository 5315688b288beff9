// Package session drives a chat conversation against the relay
// endpoint: one in-flight response at a time, every increment
// persisted as it lands.
package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"resty.dev/v3"

	"chat-relay/internal/config"
	"chat-relay/internal/domain/chat"
	"chat-relay/internal/infrastructure/logger"
	"chat-relay/internal/infrastructure/store"
	"chat-relay/internal/stream"
	"chat-relay/internal/utils/functional"
	"chat-relay/internal/utils/platformerrors"
)

// State is the controller's lifecycle position.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateError     State = "error"
)

const (
	maxInputLength = 2000

	errorContentPrefix = "Error: "
)

// FragmentFunc observes each content increment as it is applied to the
// streaming assistant message.
type FragmentFunc func(conversationID, messageID, content string)

// Controller owns the active conversation and the submission state
// machine. A second submission is rejected while one is streaming; an
// error leaves the controller recoverable for the next turn.
type Controller struct {
	mu         sync.Mutex
	cfg        *config.Config
	store      *store.ConversationStore
	client     *resty.Client
	state      State
	current    *chat.Conversation
	onFragment FragmentFunc
}

// NewController loads the stored conversations and selects the most
// recent one, matching what a returning user expects to see.
func NewController(cfg *config.Config, conversations *store.ConversationStore) *Controller {
	c := &Controller{
		cfg:    cfg,
		store:  conversations,
		client: resty.New().SetTimeout(cfg.HTTPTimeout),
		state:  StateIdle,
	}
	if stored := conversations.List(context.Background()); len(stored) > 0 {
		c.current = stored[0]
	}
	return c
}

// SetOnFragment registers the increment observer. Must be set before
// SendMessage is called.
func (c *Controller) SetOnFragment(fn FragmentFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFragment = fn
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Conversations(ctx context.Context) []*chat.Conversation {
	return c.store.List(ctx)
}

// Current returns the active conversation, or nil when none is selected.
func (c *Controller) Current() *chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NewConversation creates, persists, and selects an empty conversation.
func (c *Controller) NewConversation(ctx context.Context) (*chat.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := chat.NewConversation()
	if err := c.store.Insert(ctx, conv); err != nil {
		return nil, platformerrors.AsError(platformerrors.LayerSession, err, "failed to persist new conversation")
	}
	c.current = conv
	c.state = StateIdle
	return conv, nil
}

// Select activates the conversation with the given id. An unknown id
// falls back to the most recently used conversation.
func (c *Controller) Select(ctx context.Context, id string) *chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	conversations := c.store.List(ctx)
	if conv, found := functional.Find(conversations, func(conv *chat.Conversation) bool {
		return conv.ID == id
	}); found {
		c.current = conv
		c.state = StateIdle
		return conv
	}

	log := logger.GetLogger()
	log.Warn().Str("conversation_id", id).Msg("unknown conversation, selecting most recent")
	if len(conversations) > 0 {
		c.current = conversations[0]
	} else {
		c.current = nil
	}
	c.state = StateIdle
	return c.current
}

// Delete removes a conversation. Deleting the active one selects the
// most recent remaining conversation.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		return platformerrors.AsError(platformerrors.LayerSession, err, "failed to delete conversation")
	}
	if c.current != nil && c.current.ID == id {
		conversations := c.store.List(ctx)
		if len(conversations) > 0 {
			c.current = conversations[0]
		} else {
			c.current = nil
		}
		c.state = StateIdle
	}
	return nil
}

// SendMessage submits one user turn and blocks until the streamed
// response finishes or fails. The conversation is persisted after the
// user message, after every received increment, and at the terminal
// transition.
func (c *Controller) SendMessage(ctx context.Context, content string) error {
	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return platformerrors.NewError(
			platformerrors.LayerSession,
			platformerrors.ErrorTypeValidation,
			"a response is already streaming",
			nil,
		)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		c.mu.Unlock()
		return platformerrors.NewError(
			platformerrors.LayerSession,
			platformerrors.ErrorTypeValidation,
			"message content must not be empty",
			nil,
		)
	}
	if utf8.RuneCountInString(content) >= maxInputLength {
		c.mu.Unlock()
		return platformerrors.NewError(
			platformerrors.LayerSession,
			platformerrors.ErrorTypeValidation,
			fmt.Sprintf("message content must be shorter than %d characters", maxInputLength),
			nil,
		)
	}

	if c.current == nil {
		conv := chat.NewConversation()
		if err := c.store.Insert(ctx, conv); err != nil {
			c.mu.Unlock()
			return platformerrors.AsError(platformerrors.LayerSession, err, "failed to persist new conversation")
		}
		c.current = conv
	}

	conv := c.current
	conv.AppendMessage(chat.NewMessage(chat.RoleUser, content))

	assistant := chat.NewMessage(chat.RoleAssistant, "")
	assistant.Streaming = true
	conv.AppendMessage(assistant)

	c.state = StateStreaming
	history := c.sendableHistory(conv)
	if err := c.store.Replace(ctx, conv); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Msg("failed to persist conversation before streaming")
	}
	c.mu.Unlock()

	if err := c.streamResponse(ctx, conv, assistant.ID, history); err != nil {
		return err
	}
	return nil
}

type relayMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type relayRequest struct {
	Messages []relayMessage `json:"messages"`
}

func (c *Controller) sendableHistory(conv *chat.Conversation) []relayMessage {
	history := make([]relayMessage, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		if !msg.IsSendable() {
			continue
		}
		history = append(history, relayMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return history
}

func (c *Controller) streamResponse(ctx context.Context, conv *chat.Conversation, messageID string, history []relayMessage) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(relayRequest{Messages: history}).
		SetDoNotParseResponse(true).
		Post(c.cfg.RelayURL)
	if err != nil {
		return c.failTurn(ctx, conv, messageID, fmt.Sprintf("relay request failed: %v", err))
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return c.failTurn(ctx, conv, messageID, "relay returned no response body")
	}
	body := resp.RawResponse.Body
	defer body.Close()

	if resp.IsError() {
		raw, _ := io.ReadAll(body)
		return c.failTurn(ctx, conv, messageID, relayErrorDetail(resp.StatusCode(), raw))
	}

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		record, parsed := parseRecord(line)
		if parsed {
			switch {
			case record.Error != "":
				return c.failTurn(ctx, conv, messageID, record.Error)
			case record.Done:
				return c.finishTurn(ctx, conv, messageID)
			case record.Content != "":
				c.applyFragment(ctx, conv, messageID, record.Content)
			}
		}
		if err == io.EOF {
			return c.failTurn(ctx, conv, messageID, "response stream ended unexpectedly")
		}
		if err != nil {
			return c.failTurn(ctx, conv, messageID, fmt.Sprintf("reading response stream failed: %v", err))
		}
	}
}

// parseRecord extracts a relay record from one SSE line. Blank lines
// and frames without the data prefix are skipped.
func parseRecord(line string) (stream.Record, bool) {
	trimmed := strings.TrimSpace(line)
	payload, found := strings.CutPrefix(trimmed, "data: ")
	if !found || payload == "" {
		return stream.Record{}, false
	}
	var record stream.Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		log := logger.GetLogger()
		log.Debug().Err(err).Str("payload", payload).Msg("skipping malformed relay record")
		return stream.Record{}, false
	}
	return record, true
}

func (c *Controller) applyFragment(ctx context.Context, conv *chat.Conversation, messageID, fragment string) {
	c.mu.Lock()
	conv.UpdateMessage(messageID, func(m *chat.Message) {
		m.Content += fragment
	})
	if err := c.store.Replace(ctx, conv); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Msg("failed to persist streamed increment")
	}
	fn := c.onFragment
	c.mu.Unlock()

	if fn != nil {
		fn(conv.ID, messageID, fragment)
	}
}

func (c *Controller) finishTurn(ctx context.Context, conv *chat.Conversation, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv.UpdateMessage(messageID, func(m *chat.Message) {
		m.Streaming = false
	})
	c.state = StateIdle
	if err := c.store.Replace(ctx, conv); err != nil {
		return platformerrors.AsError(platformerrors.LayerSession, err, "failed to persist completed turn")
	}
	return nil
}

// failTurn records the failure in the assistant message so the
// transcript shows what happened, then parks the controller in the
// error state. The next SendMessage is allowed to proceed.
func (c *Controller) failTurn(ctx context.Context, conv *chat.Conversation, messageID, detail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv.UpdateMessage(messageID, func(m *chat.Message) {
		m.Content = errorContentPrefix + detail
		m.Streaming = false
	})
	c.state = StateError
	if err := c.store.Replace(ctx, conv); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Msg("failed to persist failed turn")
	}
	return platformerrors.NewError(
		platformerrors.LayerSession,
		platformerrors.ErrorTypeExternal,
		detail,
		nil,
	)
}

func relayErrorDetail(statusCode int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("relay returned status %d", statusCode)
}
