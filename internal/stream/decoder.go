// Package stream implements the incremental response pipeline: decoding
// a backend's partial-message wire format into text fragments and
// re-framing those fragments as relay events for the client.
package stream

import (
	"encoding/json"
	"io"
	"strings"

	"chat-relay/internal/infrastructure/logger"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"

	readChunkSize = 4 * 1024
)

// FragmentReader is a pull-based source of response text fragments.
// Next returns io.EOF when the sequence ends normally; fragments are
// never empty. Close releases the underlying transport promptly.
type FragmentReader interface {
	Next() (string, error)
	Close() error
}

// EventStreamDecoder parses a newline-delimited event stream
// (the vendor completion wire format) into fragments. A single read may
// end mid-record, so incomplete trailing segments are carried over to
// the next read.
type EventStreamDecoder struct {
	body    io.ReadCloser
	carry   string
	pending []string
	readBuf []byte
	done    bool
	err     error
}

func NewEventStreamDecoder(body io.ReadCloser) *EventStreamDecoder {
	return &EventStreamDecoder{
		body:    body,
		readBuf: make([]byte, readChunkSize),
	}
}

// Next returns the next fragment, io.EOF at the end of the stream, or
// the transport read error. Once the terminal sentinel is observed no
// further fragments are emitted even if more bytes follow.
func (d *EventStreamDecoder) Next() (string, error) {
	for {
		for len(d.pending) > 0 {
			segment := d.pending[0]
			d.pending = d.pending[1:]

			fragment, stop := d.decodeSegment(segment)
			if stop {
				d.done = true
				d.pending = nil
				return "", io.EOF
			}
			if fragment != "" {
				return fragment, nil
			}
		}

		if d.done {
			return "", io.EOF
		}
		if d.err != nil {
			return "", d.err
		}

		n, err := d.body.Read(d.readBuf)
		if n > 0 {
			lines := strings.Split(d.carry+string(d.readBuf[:n]), "\n")
			// Hold back the last, possibly incomplete, segment.
			d.carry = lines[len(lines)-1]
			d.pending = append(d.pending, lines[:len(lines)-1]...)
		}
		if err != nil {
			d.done = true
			if err != io.EOF {
				// Surface the failure after draining complete segments.
				d.err = err
				d.done = false
			}
			// The stream is over; attempt to decode the remainder.
			if d.carry != "" {
				d.pending = append(d.pending, d.carry)
				d.carry = ""
			}
		}
	}
}

// decodeSegment extracts the text delta of one complete segment.
// Blank segments, segments without the event prefix, malformed payloads
// and empty deltas all yield no fragment; the terminal sentinel stops
// the sequence.
func (d *EventStreamDecoder) decodeSegment(segment string) (fragment string, stop bool) {
	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return "", false
	}

	payload, found := strings.CutPrefix(trimmed, dataPrefix)
	if !found {
		return "", false
	}

	if payload == doneMarker {
		return "", true
	}

	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		// Malformed segments must not abort the stream.
		log := logger.GetLogger()
		log.Debug().Err(err).Str("payload", payload).Msg("skipping malformed stream event")
		return "", false
	}

	if len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, false
}

func (d *EventStreamDecoder) Close() error {
	return d.body.Close()
}

// RawDecoder emits backend bytes verbatim: each read-sized chunk becomes
// one fragment. Used for backends with no mandated framing.
type RawDecoder struct {
	body    io.ReadCloser
	readBuf []byte
}

func NewRawDecoder(body io.ReadCloser) *RawDecoder {
	return &RawDecoder{
		body:    body,
		readBuf: make([]byte, readChunkSize),
	}
}

func (d *RawDecoder) Next() (string, error) {
	for {
		n, err := d.body.Read(d.readBuf)
		if n > 0 {
			return string(d.readBuf[:n]), nil
		}
		if err != nil {
			return "", err
		}
	}
}

func (d *RawDecoder) Close() error {
	return d.body.Close()
}
