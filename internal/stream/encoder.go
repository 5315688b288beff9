package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Record is one relay stream event as consumed by the client. A record
// with Done=true is terminal: either a normal completion (empty Error)
// or a failed turn.
type Record struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done"`
}

type contentRecord struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type errorRecord struct {
	Error string `json:"error"`
	Done  bool   `json:"done"`
}

// RelayEncoder frames fragments as self-delimited SSE records. Exactly
// one terminal or error record ends the stream; writes after that are
// no-ops.
type RelayEncoder struct {
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

func NewRelayEncoder(w io.Writer, flusher http.Flusher) *RelayEncoder {
	return &RelayEncoder{w: w, flusher: flusher}
}

// WriteContent emits one fragment record.
func (e *RelayEncoder) WriteContent(fragment string) error {
	if e.closed {
		return nil
	}
	return e.writeRecord(contentRecord{Content: fragment, Done: false})
}

// WriteDone emits the terminal record and seals the encoder.
func (e *RelayEncoder) WriteDone() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.writeRecord(contentRecord{Content: "", Done: true})
}

// WriteError emits a single error record in place of the terminal
// record and seals the encoder.
func (e *RelayEncoder) WriteError(message string) error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.writeRecord(errorRecord{Error: message, Done: true})
}

// Closed reports whether a terminal or error record has been written.
func (e *RelayEncoder) Closed() bool {
	return e.closed
}

func (e *RelayEncoder) writeRecord(record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal relay record: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", dataPrefix, payload); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
