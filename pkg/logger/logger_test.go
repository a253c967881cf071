package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, Service: "participation"})

	log.With(EventID("e1")).Info("registration waitlisted", StudentID("s1"), Status("waitlisted"))
	log.Debug("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "participation", entry["service"])
	assert.Equal(t, "registration waitlisted", entry["message"])

	fields := entry["fields"].(map[string]any)
	assert.Equal(t, "e1", fields["event_id"])
	assert.Equal(t, "s1", fields["student_id"])
	assert.Equal(t, "waitlisted", fields["status"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug, Format: ParseFormat("TEXT")})

	log.Warn("cache unavailable", Component("redis"))
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "component=redis")
}

func TestLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf})
	_ = parent.With(StudentID("s1"))

	parent.Info("plain")
	assert.NotContains(t, buf.String(), "student_id")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestContextPropagation(t *testing.T) {
	l := Nop()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
