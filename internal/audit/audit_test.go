package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_RecordAppendsJSONLine(t *testing.T) {
	var sink bytes.Buffer
	log := NewLog(&sink, slog.Default())

	log.Record(EventLoginFailed, "alice", "10.0.0.1", SeverityWarning,
		map[string]string{"reason": "incorrect_password"})
	log.Record(EventLoginSuccess, "alice", "10.0.0.1", SeverityInfo, nil)

	lines := strings.Split(strings.TrimRight(sink.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, EventLoginFailed, event.EventType)
	assert.Equal(t, "alice", event.Principal)
	assert.Equal(t, "10.0.0.1", event.IP)
	assert.Equal(t, SeverityWarning, event.Severity)
	assert.Equal(t, "incorrect_password", event.Details["reason"])

	var second Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, EventLoginSuccess, second.EventType)
	assert.NotEqual(t, event.ID, second.ID)
}

// failingWriter always returns an error, standing in for a broken sink
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestLog_WriteFailureGoesToFallback(t *testing.T) {
	var fallbackOut bytes.Buffer
	fallback := slog.New(slog.NewJSONHandler(&fallbackOut, nil))

	log := NewLog(failingWriter{}, fallback)

	// Must not panic or propagate the sink error
	log.Record(EventAccessDenied, "", "10.0.0.1", SeverityWarning, nil)

	out := fallbackOut.String()
	assert.Contains(t, out, "audit write failed")
	assert.Contains(t, out, EventAccessDenied)
	assert.Contains(t, out, "disk full")
}
