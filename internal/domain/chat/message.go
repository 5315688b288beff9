package chat

import (
	"strings"
	"time"

	"chat-relay/internal/utils/idgen"
)

// ===============================================
// Message Types
// ===============================================

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func ValidateRole(input string) bool {
	switch Role(input) {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one entry of a conversation. While Streaming is true the
// content is still being appended to by the relay pipeline; once a
// message stops streaming it is never mutated again, except to annotate
// a failed turn.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Streaming bool      `json:"streaming,omitempty"`
}

// NewMessage creates a message with a generated msg_ identifier.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        idgen.MustGenerateSecureID("msg", 16),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// IsSendable reports whether the message may be forwarded to a backend:
// user/assistant role, non-blank content, and not mid-stream. Feeding a
// half-built response back to the backend corrupts the next turn.
func (m Message) IsSendable() bool {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return false
	}
	if strings.TrimSpace(m.Content) == "" {
		return false
	}
	return !m.Streaming
}
