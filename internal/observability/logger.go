package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Setup replaces the process logger and makes it the slog default.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func Logger() *slog.Logger {
	return logger
}

// LoggerFromContext adds the chi request id when present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	reqID := middleware.GetReqID(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}

// MaskEmail keeps only the domain of an address for logs.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}
	return "***" + email[at:]
}
