package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	SetRedactPII(true)
	t.Cleanup(func() {
		SetOutput(discard{})
		SetLevel(INFO)
	})
	return &buf
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestRedactEmail(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ana.silva@example.com", "an***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactEmail(tt.in))
	}
}

func TestLogRedactsAddresses(t *testing.T) {
	buf := capture(t)
	Info("sent", "to", "ana.silva@example.com", "note", "reply to bruno@example.com please", "err", errors.New("boom"))

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "an***@example.com", entry["to"])
	assert.Equal(t, "reply to br***@example.com please", entry["note"])
	assert.Equal(t, "boom", entry["err"])
}

func TestLevelFilter(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)
	Info("hidden")
	Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithAddsBaseFields(t *testing.T) {
	buf := capture(t)
	Default().With("component", "scheduler").Info("tick")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scheduler", entry["component"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}
