package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Backend identifies which transport adapter serves chat requests.
type Backend string

const (
	BackendOpenAI  Backend = "openai"
	BackendWebhook Backend = "webhook"
)

// Storage backends for the conversation collection.
const (
	StorageBackendFile   = "file"
	StorageBackendRedis  = "redis"
	StorageBackendMemory = "memory"
)

// Global singleton for packages that cannot take an injected config
var globalConfig *Config

// Config holds all environment backed configuration for chat-relay.
type Config struct {
	// HTTP Server
	HTTPPort    int `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int `env:"METRICS_PORT" envDefault:"9091"`

	// Backend selection
	ChatBackend Backend `env:"CHAT_BACKEND" envDefault:"openai"`

	// OpenAI-compatible backend
	OpenAIAPIKey     string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel      string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	MaxTokens        int     `env:"OPENAI_MAX_TOKENS" envDefault:"1000"`
	Temperature      float32 `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`
	TopP             float32 `env:"OPENAI_TOP_P" envDefault:"1"`
	FrequencyPenalty float32 `env:"OPENAI_FREQUENCY_PENALTY" envDefault:"0"`
	PresencePenalty  float32 `env:"OPENAI_PRESENCE_PENALTY" envDefault:"0"`

	// System instruction, either inline or from a YAML file. The file
	// wins when both are set.
	SystemPrompt     string `env:"SYSTEM_PROMPT" envDefault:"You are a helpful AI assistant. Be concise, accurate, and friendly in your responses."`
	SystemPromptFile string `env:"SYSTEM_PROMPT_FILE"`

	// Webhook backend
	WebhookURL string `env:"WEBHOOK_URL"`

	// Backend reachability probe
	ProbeEnabled         bool `env:"BACKEND_PROBE_ENABLED" envDefault:"true"`
	ProbeIntervalMinutes int  `env:"BACKEND_PROBE_INTERVAL_MINUTES" envDefault:"5"`

	// Conversation storage (used by the chat client)
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"file"`
	StorageKey     string `env:"STORAGE_KEY" envDefault:"chat-conversations"`
	StorageDir     string `env:"STORAGE_DIR" envDefault:".chat-relay"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`

	// Relay endpoint used by the chat client
	RelayURL string `env:"RELAY_URL" envDefault:"http://localhost:8080/v1/chat/stream"`

	// Observability / Logging
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"120s"`
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string        `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"chat-relay"`
	ServiceNamespace string        `env:"SERVICE_NAMESPACE" envDefault:"chat"`
	Environment      string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`
}

type promptFile struct {
	SystemPrompt string `yaml:"system_prompt"`
}

// Load parses environment variables into Config and performs minimal
// validation. Backend-specific parameter validation happens at adapter
// construction.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.ChatBackend {
	case BackendOpenAI, BackendWebhook:
	default:
		return nil, fmt.Errorf("unknown CHAT_BACKEND %q (expected openai or webhook)", cfg.ChatBackend)
	}

	if cfg.SystemPromptFile != "" {
		prompt, err := loadSystemPromptFile(cfg.SystemPromptFile)
		if err != nil {
			return nil, fmt.Errorf("load system prompt file: %w", err)
		}
		cfg.SystemPrompt = prompt
	}

	if cfg.WebhookURL != "" {
		if _, err := url.ParseRequestURI(cfg.WebhookURL); err != nil {
			return nil, fmt.Errorf("invalid WEBHOOK_URL: %w", err)
		}
	}

	switch cfg.StorageBackend {
	case StorageBackendFile, StorageBackendRedis, StorageBackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (expected file, redis or memory)", cfg.StorageBackend)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	globalConfig = cfg

	return cfg, nil
}

func loadSystemPromptFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var pf promptFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return "", fmt.Errorf("parse yaml: %w", err)
	}
	prompt := strings.TrimSpace(pf.SystemPrompt)
	if prompt == "" {
		return "", fmt.Errorf("%s has no system_prompt", path)
	}
	return prompt, nil
}

// GetGlobal returns the global config instance.
// Deprecated: Use dependency injection with Load() instead.
func GetGlobal() *Config {
	return globalConfig
}

// LogStartupSummary emits a redacted view of the configuration. Secrets
// are reported by presence and length only.
func (c *Config) LogStartupSummary(log zerolog.Logger) {
	log.Info().
		Str("backend", string(c.ChatBackend)).
		Str("model", c.OpenAIModel).
		Bool("api_key_set", c.OpenAIAPIKey != "").
		Int("api_key_length", len(c.OpenAIAPIKey)).
		Str("base_url", c.OpenAIBaseURL).
		Bool("webhook_url_set", c.WebhookURL != "").
		Str("storage_backend", c.StorageBackend).
		Str("environment", c.Environment).
		Msg("configuration loaded")
}

var Version = "dev"

func IsDev() bool {
	return strings.HasPrefix(Version, "dev")
}
