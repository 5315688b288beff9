package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayEncoderFramesRecords(t *testing.T) {
	recorder := httptest.NewRecorder()
	encoder := NewRelayEncoder(recorder, recorder)

	require.NoError(t, encoder.WriteContent("Hello"))
	require.NoError(t, encoder.WriteContent(" world"))
	require.NoError(t, encoder.WriteDone())

	want := "data: {\"content\":\"Hello\",\"done\":false}\n\n" +
		"data: {\"content\":\" world\",\"done\":false}\n\n" +
		"data: {\"content\":\"\",\"done\":true}\n\n"
	assert.Equal(t, want, recorder.Body.String())
	assert.True(t, recorder.Flushed)
}

func TestRelayEncoderSingleTerminalRecord(t *testing.T) {
	recorder := httptest.NewRecorder()
	encoder := NewRelayEncoder(recorder, recorder)

	require.NoError(t, encoder.WriteDone())
	assert.True(t, encoder.Closed())

	// Everything after the terminal record is a no-op.
	require.NoError(t, encoder.WriteContent("late"))
	require.NoError(t, encoder.WriteDone())
	require.NoError(t, encoder.WriteError("late failure"))

	assert.Equal(t, 1, strings.Count(recorder.Body.String(), "data: "))
}

func TestRelayEncoderErrorRecordIsTerminal(t *testing.T) {
	recorder := httptest.NewRecorder()
	encoder := NewRelayEncoder(recorder, recorder)

	require.NoError(t, encoder.WriteContent("partial"))
	require.NoError(t, encoder.WriteError("rate limit exceeded"))
	assert.True(t, encoder.Closed())

	body := recorder.Body.String()
	assert.Contains(t, body, "data: {\"error\":\"rate limit exceeded\",\"done\":true}\n\n")
	// An error record never carries content alongside it.
	assert.NotContains(t, body, "\"content\":\"\",\"error\"")

	require.NoError(t, encoder.WriteContent("after error"))
	assert.NotContains(t, recorder.Body.String(), "after error")
}

func TestRelayEncoderRecordRoundTrip(t *testing.T) {
	recorder := httptest.NewRecorder()
	encoder := NewRelayEncoder(recorder, recorder)

	require.NoError(t, encoder.WriteContent("chunk"))
	require.NoError(t, encoder.WriteError("backend gone"))

	var records []Record
	for _, line := range strings.Split(recorder.Body.String(), "\n") {
		payload, found := strings.CutPrefix(line, "data: ")
		if !found {
			continue
		}
		var record Record
		require.NoError(t, json.Unmarshal([]byte(payload), &record))
		records = append(records, record)
	}

	require.Len(t, records, 2)
	assert.Equal(t, Record{Content: "chunk"}, records[0])
	assert.Equal(t, Record{Error: "backend gone", Done: true}, records[1])
}
