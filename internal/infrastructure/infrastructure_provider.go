package infrastructure

import (
	"fmt"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"chat-relay/internal/config"
	"chat-relay/internal/infrastructure/crontab"
	"chat-relay/internal/infrastructure/kv"
	"chat-relay/internal/infrastructure/logger"
	"chat-relay/internal/infrastructure/store"
	"chat-relay/internal/infrastructure/transport"
)

// ProvideConfig returns the process-wide configuration.
func ProvideConfig() (*config.Config, error) {
	if cfg := config.GetGlobal(); cfg != nil {
		return cfg, nil
	}
	return config.Load()
}

// ProvideKVStore selects the persistence backend from configuration.
func ProvideKVStore(cfg *config.Config) (kv.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendRedis:
		return kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	case config.StorageBackendFile:
		return kv.NewFileStore(cfg.StorageDir)
	case config.StorageBackendMemory:
		return kv.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// ProvideConversationStore wires the conversation collection onto the
// selected backend.
func ProvideConversationStore(backing kv.Store, cfg *config.Config, log zerolog.Logger) *store.ConversationStore {
	return store.NewConversationStore(backing, cfg.StorageKey, log)
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,

	// Persistence
	ProvideKVStore,
	ProvideConversationStore,

	// Backend transport
	transport.NewFromConfig,

	// Logger
	logger.GetLogger,

	// Crontab for backend probes
	crontab.NewCrontab,
)
