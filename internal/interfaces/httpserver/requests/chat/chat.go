// Package chat provides request bindings for the relay endpoint.
package chat

import (
	domain "chat-relay/internal/domain/chat"
	"chat-relay/internal/utils/functional"
)

// RelayMessage is one inbound conversation entry.
type RelayMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

// RelayRequest is the relay endpoint's body: the full ordered message
// list for one conversation turn.
type RelayRequest struct {
	Messages []RelayMessage `json:"messages" binding:"required"`
}

// ToDomain converts the inbound list to domain messages. Role and
// content filtering is the transport adapter's concern.
func (r RelayRequest) ToDomain() []domain.Message {
	return functional.Map(r.Messages, func(m RelayMessage) domain.Message {
		return domain.Message{
			Role:    domain.Role(m.Role),
			Content: m.Content,
		}
	})
}
