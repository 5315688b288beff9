package transport

import (
	"fmt"

	"chat-relay/internal/config"
	"chat-relay/internal/utils/platformerrors"
)

// NewFromConfig constructs the adapter selected by CHAT_BACKEND.
func NewFromConfig(cfg *config.Config) (Transport, error) {
	switch cfg.ChatBackend {
	case config.BackendOpenAI:
		return NewOpenAIAdapter(cfg)
	case config.BackendWebhook:
		return NewWebhookAdapter(cfg)
	default:
		return nil, platformerrors.NewError(
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeConfiguration,
			fmt.Sprintf("unknown chat backend %q", cfg.ChatBackend),
			nil,
		)
	}
}
