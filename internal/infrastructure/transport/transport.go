// Package transport adapts backend request/response contracts into the
// pipeline's fragment-sequence contract. One adapter exists per backend
// kind; everything downstream consumes stream.FragmentReader and never
// sees raw payload shapes.
package transport

import (
	"context"
	"fmt"
	"net/http"

	"chat-relay/internal/domain/chat"
	"chat-relay/internal/stream"
	"chat-relay/internal/utils/functional"
)

// Transport sends a conversation to a backend and exposes the response
// as a lazy fragment sequence.
type Transport interface {
	Name() string
	Send(ctx context.Context, messages []chat.Message) (stream.FragmentReader, error)
	// Probe performs a minimal request to verify the backend is
	// reachable with the current configuration.
	Probe(ctx context.Context) error
}

// Error is a per-request transport failure carrying the upstream HTTP
// status. It is surfaced to the relay caller as a single error record
// and never retried automatically.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// newStatusError builds a status-specialized Error. The detail comes
// from the backend's structured error body when parseable, else from
// the raw status line.
func newStatusError(statusCode int, detail string) *Error {
	var category string
	switch {
	case statusCode == http.StatusBadRequest:
		category = "bad request: invalid request format or parameters"
	case statusCode == http.StatusUnauthorized:
		category = "authentication failed: invalid API key provided"
	case statusCode == http.StatusForbidden:
		category = "permission denied"
	case statusCode == http.StatusNotFound:
		category = "requested resource or model not found"
	case statusCode == http.StatusUnprocessableEntity:
		category = "unable to process the request"
	case statusCode == http.StatusTooManyRequests:
		category = "rate limit exceeded: too many requests, please slow down"
	case statusCode >= http.StatusInternalServerError:
		category = "upstream server error"
	default:
		category = fmt.Sprintf("unexpected status %d", statusCode)
	}

	msg := category
	if detail != "" {
		msg = fmt.Sprintf("%s (%s)", category, detail)
	}
	return &Error{StatusCode: statusCode, Message: msg}
}

// sendableMessages filters a conversation down to what may be forwarded
// to a backend: user/assistant roles, non-blank content, not mid-stream.
func sendableMessages(messages []chat.Message) []chat.Message {
	return functional.Filter(messages, chat.Message.IsSendable)
}
