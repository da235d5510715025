package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func decodeLine(t *testing.T, line []byte) map[string]any {
	assert.Equal(t, byte('\n'), line[len(line)-1])
	var record map[string]any
	err := json.Unmarshal(line[:len(line)-1], &record)
	assert.NoError(t, err)
	return record
}

func TestEncoder_WrapsPlainPayload(t *testing.T) {
	encode := NewEncoder("raw", nil)

	line, err := encode("hello")
	assert.NoError(t, err)

	record := decodeLine(t, line)
	assert.Equal(t, "raw", record["topic"])
	assert.Equal(t, []any{"hello"}, record["args"])
	assert.NotNil(t, record["ts"])
	assert.NotContains(t, record, "src")
}

func TestEncoder_PassesRecordThrough(t *testing.T) {
	encode := NewEncoder("raw", nil)

	line, err := encode(map[string]any{
		"topic": "app:db",
		"ts":    123.0,
		"args":  []any{"query done"},
	})
	assert.NoError(t, err)

	record := decodeLine(t, line)
	assert.Equal(t, "app:db", record["topic"])
	assert.Equal(t, 123.0, record["ts"])
	assert.Equal(t, []any{"query done"}, record["args"])
}

func TestEncoder_FillsMissingTimestamp(t *testing.T) {
	encode := NewEncoder("raw", nil)

	line, err := encode(map[string]any{"topic": "app"})
	assert.NoError(t, err)

	record := decodeLine(t, line)
	assert.NotNil(t, record["ts"])
}

func TestEncoder_MapWithoutTopicIsWrapped(t *testing.T) {
	encode := NewEncoder("raw", nil)

	line, err := encode(map[string]any{"user": "bob"})
	assert.NoError(t, err)

	record := decodeLine(t, line)
	assert.Equal(t, "raw", record["topic"])
	args, ok := record["args"].([]any)
	assert.True(t, ok)
	assert.Equal(t, 1, len(args))
}

func TestEncoder_MergesSourceCallerWins(t *testing.T) {
	encode := NewEncoder("raw", map[string]any{
		"service": "api",
		"host":    "node-1",
	})

	line, err := encode(map[string]any{
		"topic": "app",
		"src":   map[string]any{"host": "override"},
	})
	assert.NoError(t, err)

	record := decodeLine(t, line)
	src, ok := record["src"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "api", src["service"])
	assert.Equal(t, "override", src["host"])
}

func TestEncoder_AttachesSourceToWrappedPayload(t *testing.T) {
	encode := NewEncoder("raw", map[string]any{"service": "api"})

	line, err := encode(42)
	assert.NoError(t, err)

	record := decodeLine(t, line)
	src, ok := record["src"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "api", src["service"])
}

func TestEncoder_DoesNotMutateCallerRecord(t *testing.T) {
	encode := NewEncoder("raw", map[string]any{"service": "api"})

	payload := map[string]any{"topic": "app"}
	_, err := encode(payload)
	assert.NoError(t, err)

	assert.NotContains(t, payload, "ts")
	assert.NotContains(t, payload, "src")
}

func TestEncoder_UnserializablePayload(t *testing.T) {
	encode := NewEncoder("raw", nil)

	_, err := encode(make(chan int))
	assert.Error(t, err)
}
