// Package relayhandler drives the incremental response pipeline for one
// relay request: transport send, wire decode, relay encode.
package relayhandler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"chat-relay/internal/config"
	"chat-relay/internal/infrastructure/logger"
	"chat-relay/internal/infrastructure/metrics"
	"chat-relay/internal/infrastructure/observability"
	"chat-relay/internal/infrastructure/transport"
	"chat-relay/internal/interfaces/httpserver/middlewares"
	chatrequests "chat-relay/internal/interfaces/httpserver/requests/chat"
	"chat-relay/internal/stream"
)

const (
	outcomeCompleted = "completed"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
)

// RelayHandler handles streaming chat relay requests
type RelayHandler struct {
	transport transport.Transport
	cfg       *config.Config
}

// NewRelayHandler creates a new relay handler
func NewRelayHandler(backend transport.Transport, cfg *config.Config) *RelayHandler {
	return &RelayHandler{
		transport: backend,
		cfg:       cfg,
	}
}

// StreamChat accepts a conversation and streams the backend's response
// back as relay records. Once the SSE headers are committed every
// failure is downgraded to a single error record; only input validation
// may still use a conventional HTTP status.
func (h *RelayHandler) StreamChat(c *gin.Context) {
	var request chatrequests.RelayRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages array is required"})
		return
	}

	ctx, span := observability.StartSpan(c.Request.Context(), h.cfg.ServiceName, "RelayHandler.StreamChat")
	defer span.End()
	observability.AddSpanAttributes(ctx,
		attribute.String("relay.backend", h.transport.Name()),
		attribute.Int("relay.message_count", len(request.Messages)),
	)

	log := logger.GetLogger()
	backend := h.transport.Name()
	start := time.Now()

	flusher, ok := middlewares.PrepareSSE(c)
	if !ok {
		log.Warn().Msg("response writer does not support flushing")
	}
	c.Writer.WriteHeaderNow()

	encoder := stream.NewRelayEncoder(c.Writer, flusher)

	outcome := outcomeError
	defer func() {
		metrics.StreamsTotal.WithLabelValues(backend, outcome).Inc()
		metrics.StreamDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	}()

	reader, err := h.transport.Send(ctx, request.ToDomain())
	if err != nil {
		h.recordTransportFailure(backend, err)
		observability.RecordError(ctx, err)
		if writeErr := encoder.WriteError(err.Error()); writeErr != nil {
			log.Error().Err(writeErr).Msg("unable to write error record")
		}
		return
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("backend", backend).Msg("unable to close fragment reader")
		}
	}()

	clientGone := c.Request.Context().Done()
	fragments := 0

	for {
		select {
		case <-clientGone:
			// Closing the reader below releases the backend request.
			outcome = outcomeCancelled
			return
		default:
		}

		fragment, err := reader.Next()
		if errors.Is(err, io.EOF) {
			if writeErr := encoder.WriteDone(); writeErr != nil {
				log.Error().Err(writeErr).Msg("unable to write terminal record")
				return
			}
			observability.AddSpanEvent(ctx, "relay.stream.completed",
				attribute.Int("relay.fragments", fragments))
			outcome = outcomeCompleted
			return
		}
		if err != nil {
			if c.Request.Context().Err() != nil {
				// The read failed because the client went away.
				outcome = outcomeCancelled
				return
			}
			h.recordTransportFailure(backend, err)
			observability.RecordError(ctx, err)
			if writeErr := encoder.WriteError(err.Error()); writeErr != nil {
				log.Error().Err(writeErr).Msg("unable to write error record")
			}
			return
		}

		if writeErr := encoder.WriteContent(fragment); writeErr != nil {
			// The client went away mid-write.
			outcome = outcomeCancelled
			return
		}
		fragments++
		metrics.FragmentsTotal.WithLabelValues(backend).Inc()
	}
}

func (h *RelayHandler) recordTransportFailure(backend string, err error) {
	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		metrics.RecordTransportError(backend, transportErr.StatusCode)
		return
	}
	metrics.RecordTransportError(backend, 0)
}
