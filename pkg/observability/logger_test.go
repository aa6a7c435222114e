package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoria/dashboard/pkg/contextkeys"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug should not be logged at info level")

	logger.Info("shown")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "shown", entry["msg"])

	buf.Reset()
	logger.Warnf("refresh failed %d times", 2)
	entry = decodeEntry(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "refresh failed 2 times", entry["msg"])
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("course", "c-1").
		WithFields(map[string]interface{}{"attempt": 2}).
		WithError(errors.New("boom")).
		Error("failed")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "c-1", entry["course"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "boom", entry["error"])
	assert.Same(t, logger, logger.WithError(nil))
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	assert.Equal(t, ErrorLevel, logger.Level())
	assert.NotPanics(t, func() { logger.WithField("k", "v").Error("dropped") })
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-1")
	ctx = contextkeys.WithPrincipal(ctx, contextkeys.Principal{UserID: "user-1", AccessRole: "admin_professor"})

	FromContext(ctx).Info("hello")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "admin_professor", entry["access_role"])
}

func TestFromContext_Anonymous(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(InfoLevel, &buf))

	FromContext(ctx).Info("hello")

	entry := decodeEntry(t, &buf)
	assert.NotContains(t, entry, "user_id")
	assert.NotContains(t, entry, "request_id")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"DEBUG":   DebugLevel,
		"info":    InfoLevel,
		"warning": WarnLevel,
		" warn ":  WarnLevel,
		"error":   ErrorLevel,
		"verbose": InfoLevel,
		"":        InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
	assert.Equal(t, "WARN", WarnLevel.String())
}
