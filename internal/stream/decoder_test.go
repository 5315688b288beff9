package stream

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader serves at most chunkSize bytes per Read so tests can
// force record boundaries to land mid-read.
type chunkedReader struct {
	data      string
	chunkSize int
	pos       int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.chunkSize
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func (r *chunkedReader) Close() error { return nil }

func event(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", content)
}

func collectFragments(t *testing.T, reader FragmentReader) []string {
	t.Helper()
	var fragments []string
	for {
		fragment, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return fragments
		}
		require.NoError(t, err)
		fragments = append(fragments, fragment)
	}
}

func TestEventStreamDecoderChunkBoundaryInvariance(t *testing.T) {
	wire := event("Hello") + event(" ") + event("world") + event("!") + "data: [DONE]\n\n"
	want := []string{"Hello", " ", "world", "!"}

	for _, chunkSize := range []int{1, 2, 3, 5, 7, 16, 64, len(wire)} {
		t.Run(fmt.Sprintf("chunk_%d", chunkSize), func(t *testing.T) {
			decoder := NewEventStreamDecoder(&chunkedReader{data: wire, chunkSize: chunkSize})
			assert.Equal(t, want, collectFragments(t, decoder))
		})
	}
}

func TestEventStreamDecoderStopsAtSentinel(t *testing.T) {
	wire := event("before") + "data: [DONE]\n\n" + event("after")
	decoder := NewEventStreamDecoder(io.NopCloser(strings.NewReader(wire)))

	assert.Equal(t, []string{"before"}, collectFragments(t, decoder))

	// The sequence stays ended on repeated calls.
	_, err := decoder.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventStreamDecoderSkipsMalformedSegments(t *testing.T) {
	wire := event("Hi") +
		"data: {not json}\n\n" +
		"ignore: no prefix\n\n" +
		event("!") +
		"data: [DONE]\n\n"
	decoder := NewEventStreamDecoder(io.NopCloser(strings.NewReader(wire)))

	assert.Equal(t, []string{"Hi", "!"}, collectFragments(t, decoder))
}

func TestEventStreamDecoderSuppressesEmptyDeltas(t *testing.T) {
	wire := "data: {\"choices\":[{\"delta\":{}}]}\n\n" +
		"data: {\"choices\":[]}\n\n" +
		event("only") +
		"data: [DONE]\n\n"
	decoder := NewEventStreamDecoder(io.NopCloser(strings.NewReader(wire)))

	assert.Equal(t, []string{"only"}, collectFragments(t, decoder))
}

func TestEventStreamDecoderEndWithoutSentinel(t *testing.T) {
	// A backend that closes without the sentinel still ends cleanly.
	decoder := NewEventStreamDecoder(io.NopCloser(strings.NewReader(event("tail"))))

	assert.Equal(t, []string{"tail"}, collectFragments(t, decoder))
}

type failingReader struct {
	data string
	err  error
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, r.err
}

func (r *failingReader) Close() error { return nil }

func TestEventStreamDecoderSurfacesReadErrorAfterDraining(t *testing.T) {
	readErr := errors.New("connection reset")
	decoder := NewEventStreamDecoder(&failingReader{data: event("partial"), err: readErr})

	fragment, err := decoder.Next()
	require.NoError(t, err)
	assert.Equal(t, "partial", fragment)

	_, err = decoder.Next()
	assert.ErrorIs(t, err, readErr)
}

func TestRawDecoderPassesChunksThrough(t *testing.T) {
	decoder := NewRawDecoder(&chunkedReader{data: "raw bytes, any shape", chunkSize: 9})

	assert.Equal(t, []string{"raw bytes", ", any sha", "pe"}, collectFragments(t, decoder))
}
