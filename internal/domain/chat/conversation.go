package chat

import (
	"time"

	"chat-relay/internal/utils/idgen"
)

const (
	// DefaultTitle is the placeholder title before the first message lands.
	DefaultTitle = "New Chat"

	maxTitleLength = 50
)

// Conversation owns an ordered, append-only message list. At most one
// message may be streaming at a time.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation with a generated conv_
// identifier and the placeholder title.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        idgen.MustGenerateSecureID("conv", 16),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendMessage adds a message to the end of the conversation. The title
// is derived from the first message's content.
func (c *Conversation) AppendMessage(msg Message) {
	if len(c.Messages) == 0 && msg.Role == RoleUser {
		c.Title = DeriveTitle(msg.Content)
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// UpdateMessage replaces the message with the given id. Returns false
// when no message matches.
func (c *Conversation) UpdateMessage(id string, update func(*Message)) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			update(&c.Messages[i])
			c.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// StreamingMessage returns the message currently being streamed to, if any.
func (c *Conversation) StreamingMessage() (*Message, bool) {
	for i := range c.Messages {
		if c.Messages[i].Streaming {
			return &c.Messages[i], true
		}
	}
	return nil, false
}

// DeriveTitle truncates content to the title limit, appending an
// ellipsis when truncation occurred.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= maxTitleLength {
		return content
	}
	return string(runes[:maxTitleLength]) + "..."
}
