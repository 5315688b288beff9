package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"chat-relay/internal/config"
	"chat-relay/internal/domain/chat"
	"chat-relay/internal/infrastructure/logger"
	"chat-relay/internal/stream"
	"chat-relay/internal/utils/functional"
	"chat-relay/internal/utils/platformerrors"
)

const completionsPath = "/chat/completions"

// OpenAIAdapter speaks the vendor completion API: a typed request
// contract and a delimited-event response stream.
type OpenAIAdapter struct {
	client  *resty.Client
	baseURL string
	cfg     *config.Config
}

// NewOpenAIAdapter validates the generation configuration eagerly; a
// misconfigured process must refuse to serve rather than degrade
// silently.
func NewOpenAIAdapter(cfg *config.Config) (*OpenAIAdapter, error) {
	var problems []string

	if cfg.OpenAIAPIKey == "" {
		problems = append(problems, "OPENAI_API_KEY is required")
	} else if !strings.HasPrefix(cfg.OpenAIAPIKey, "sk-") {
		problems = append(problems, `OPENAI_API_KEY should start with "sk-"`)
	}
	if cfg.OpenAIModel == "" {
		problems = append(problems, "OPENAI_MODEL is required")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		problems = append(problems, "OPENAI_TEMPERATURE must be between 0 and 2")
	}
	if cfg.TopP < 0 || cfg.TopP > 1 {
		problems = append(problems, "OPENAI_TOP_P must be between 0 and 1")
	}
	if cfg.FrequencyPenalty < -2 || cfg.FrequencyPenalty > 2 {
		problems = append(problems, "OPENAI_FREQUENCY_PENALTY must be between -2 and 2")
	}
	if cfg.PresencePenalty < -2 || cfg.PresencePenalty > 2 {
		problems = append(problems, "OPENAI_PRESENCE_PENALTY must be between -2 and 2")
	}
	if cfg.MaxTokens < 1 {
		problems = append(problems, "OPENAI_MAX_TOKENS must be greater than 0")
	}

	if len(problems) > 0 {
		return nil, platformerrors.NewError(
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeConfiguration,
			fmt.Sprintf("openai configuration errors: %s", strings.Join(problems, "; ")),
			nil,
		)
	}

	client := resty.New().SetTimeout(cfg.HTTPTimeout)

	return &OpenAIAdapter{
		client:  client,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.OpenAIBaseURL), "/"),
		cfg:     cfg,
	}, nil
}

func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Send issues the streaming completion request and wires the response
// body through the delimited-event decoder.
func (a *OpenAIAdapter) Send(ctx context.Context, messages []chat.Message) (stream.FragmentReader, error) {
	request := a.buildRequest(messages, true)

	resp, err := a.prepareRequest(ctx).
		SetBody(request).
		SetDoNotParseResponse(true).
		Post(a.baseURL + completionsPath)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("openai request failed: %v", err)}
	}

	if resp.IsError() {
		return nil, a.errorFromResponse(resp)
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, &Error{Message: "openai streaming request returned no response body"}
	}

	return stream.NewEventStreamDecoder(resp.RawResponse.Body), nil
}

// Probe issues a minimal non-streaming completion to verify credentials
// and reachability.
func (a *OpenAIAdapter) Probe(ctx context.Context) error {
	request := a.buildRequest([]chat.Message{
		{ID: "probe", Role: chat.RoleUser, Content: "Hello"},
	}, false)
	request.MaxTokens = 1

	resp, err := a.prepareRequest(ctx).
		SetBody(request).
		SetDoNotParseResponse(true).
		Post(a.baseURL + completionsPath)
	if err != nil {
		return &Error{Message: fmt.Sprintf("openai probe failed: %v", err)}
	}
	defer a.closeRawBody(resp)

	if resp.IsError() {
		return a.errorFromResponse(resp)
	}
	return nil
}

func (a *OpenAIAdapter) prepareRequest(ctx context.Context) *resty.Request {
	return a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+a.cfg.OpenAIAPIKey).
		SetHeader("Accept-Encoding", "identity")
}

func (a *OpenAIAdapter) buildRequest(messages []chat.Message, streaming bool) openai.ChatCompletionRequest {
	formatted := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if a.cfg.SystemPrompt != "" {
		formatted = append(formatted, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: a.cfg.SystemPrompt,
		})
	}

	formatted = append(formatted, functional.Map(sendableMessages(messages), func(m chat.Message) openai.ChatCompletionMessage {
		return openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	})...)

	return openai.ChatCompletionRequest{
		Model:            a.cfg.OpenAIModel,
		Messages:         formatted,
		Stream:           streaming,
		MaxTokens:        a.cfg.MaxTokens,
		Temperature:      a.cfg.Temperature,
		TopP:             a.cfg.TopP,
		FrequencyPenalty: a.cfg.FrequencyPenalty,
		PresencePenalty:  a.cfg.PresencePenalty,
	}
}

// errorFromResponse reads the structured error body when possible and
// maps the status code to a specialized message. Error-body parsing
// itself must never raise past this handler.
func (a *OpenAIAdapter) errorFromResponse(resp *resty.Response) *Error {
	detail := resp.Status()

	if resp.RawResponse != nil && resp.RawResponse.Body != nil {
		defer a.closeRawBody(resp)
		body, err := io.ReadAll(resp.RawResponse.Body)
		if err == nil {
			var apiErr struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
					Param   string `json:"param"`
					Code    string `json:"code"`
				} `json:"error"`
			}
			if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
				detail = apiErr.Error.Message
			}
		}
	}

	return newStatusError(resp.StatusCode(), detail)
}

func (a *OpenAIAdapter) closeRawBody(resp *resty.Response) {
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return
	}
	if err := resp.RawResponse.Body.Close(); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Str("transport", a.Name()).Msg("unable to close response body")
	}
}
