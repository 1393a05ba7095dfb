package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "", MaskEmail(""))
	assert.Equal(t, "***@example.com", MaskEmail("ana@example.com"))
	assert.Equal(t, "***", MaskEmail("not-an-address"))
}

func TestLoggerFromContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	Setup(&buf, slog.LevelInfo)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	LoggerFromContext(ctx).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "hello", entry["msg"])
}
