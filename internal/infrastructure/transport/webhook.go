package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"resty.dev/v3"

	"chat-relay/internal/config"
	"chat-relay/internal/domain/chat"
	"chat-relay/internal/infrastructure/logger"
	"chat-relay/internal/stream"
	"chat-relay/internal/utils/functional"
	"chat-relay/internal/utils/platformerrors"
)

// WebhookAdapter posts the conversation to a workflow-automation
// webhook. The contract is untyped: the response body is treated as
// opaque streamed bytes with no framing assumed.
type WebhookAdapter struct {
	client     *resty.Client
	webhookURL string
}

type webhookMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewWebhookAdapter validates only that an endpoint URL is configured.
func NewWebhookAdapter(cfg *config.Config) (*WebhookAdapter, error) {
	if cfg.WebhookURL == "" {
		return nil, platformerrors.NewError(
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeConfiguration,
			"WEBHOOK_URL is required",
			nil,
		)
	}

	return &WebhookAdapter{
		client:     resty.New().SetTimeout(cfg.HTTPTimeout),
		webhookURL: cfg.WebhookURL,
	}, nil
}

func (a *WebhookAdapter) Name() string {
	return "webhook"
}

func (a *WebhookAdapter) Send(ctx context.Context, messages []chat.Message) (stream.FragmentReader, error) {
	formatted := functional.Map(sendableMessages(messages), func(m chat.Message) webhookMessage {
		return webhookMessage{Role: string(m.Role), Content: m.Content}
	})

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"messages": formatted}).
		SetDoNotParseResponse(true).
		Post(a.webhookURL)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("webhook request failed: %v", err)}
	}

	if resp.IsError() {
		return nil, a.errorFromResponse(resp)
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, &Error{Message: "webhook request returned no response body"}
	}

	return stream.NewRawDecoder(resp.RawResponse.Body), nil
}

// Probe checks that the endpoint answers HTTP at all. Webhook workflows
// often reject GETs, so any response counts as reachable.
func (a *WebhookAdapter) Probe(ctx context.Context) error {
	resp, err := a.client.R().SetContext(ctx).Get(a.webhookURL)
	if err != nil {
		return &Error{Message: fmt.Sprintf("webhook probe failed: %v", err)}
	}
	_ = resp
	return nil
}

// errorFromResponse prefers the JSON error field, falling back to the
// raw status line when the body is unparseable.
func (a *WebhookAdapter) errorFromResponse(resp *resty.Response) *Error {
	detail := resp.Status()

	if resp.RawResponse != nil && resp.RawResponse.Body != nil {
		defer func() {
			if err := resp.RawResponse.Body.Close(); err != nil {
				log := logger.GetLogger()
				log.Error().Err(err).Str("transport", a.Name()).Msg("unable to close response body")
			}
		}()
		body, err := io.ReadAll(resp.RawResponse.Body)
		if err == nil {
			var apiErr struct {
				Error string `json:"error"`
			}
			if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Error != "" {
				detail = apiErr.Error
			}
		}
	}

	return newStatusError(resp.StatusCode(), detail)
}
