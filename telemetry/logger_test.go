package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	l := NewLogger("test-svc")
	var buf bytes.Buffer
	l.SetOutput(&buf)
	return l, &buf
}

func TestLoggerLevels(t *testing.T) {
	l, buf := newTestLogger(t)
	l.SetLevel("WARN")

	l.Info("hidden", nil)
	assert.Empty(t, buf.String())

	l.Warn("visible", nil)
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestLoggerTextFields(t *testing.T) {
	l, buf := newTestLogger(t)

	l.Info("request done", map[string]interface{}{
		"status": 200,
		"error":  "none really",
	})

	out := buf.String()
	assert.Contains(t, out, "[telemetry:test-svc]")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, `error="none really"`)
}

func TestLoggerJSONFormat(t *testing.T) {
	l, buf := newTestLogger(t)
	l.format = "json"

	l.Info("structured", map[string]interface{}{"key": "value"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "structured", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "test-svc", entry["service"])
	assert.Equal(t, "value", entry["key"])
}

// TestLoggerErrorRateLimit verifies a failing backend cannot flood the log:
// error output is capped at one line per limiter interval.
func TestLoggerErrorRateLimit(t *testing.T) {
	l, buf := newTestLogger(t)
	l.errorLimiter = NewRateLimiter(time.Hour)

	for i := 0; i < 10; i++ {
		l.Error("backend down", nil)
	}

	lines := strings.Count(strings.TrimSpace(buf.String()), "\n") + 1
	assert.Equal(t, 1, lines)
}

func TestLoggerDebugGate(t *testing.T) {
	l, buf := newTestLogger(t)

	l.Debug("invisible", nil)
	assert.Empty(t, buf.String())

	l.SetLevel("DEBUG")
	l.Debug("now visible", nil)
	assert.Contains(t, buf.String(), "now visible")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(50 * time.Millisecond)

	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow())
}
