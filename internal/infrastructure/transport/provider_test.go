package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/config"
)

func TestNewFromConfigSelectsAdapter(t *testing.T) {
	openaiCfg := validOpenAIConfig("https://api.openai.com/v1")
	openaiCfg.ChatBackend = config.BackendOpenAI
	backend, err := NewFromConfig(openaiCfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", backend.Name())

	hookCfg := webhookConfig("http://localhost:5678/webhook/chat")
	hookCfg.ChatBackend = config.BackendWebhook
	backend, err = NewFromConfig(hookCfg)
	require.NoError(t, err)
	assert.Equal(t, "webhook", backend.Name())

	_, err = NewFromConfig(&config.Config{ChatBackend: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown chat backend")
}
