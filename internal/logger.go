package internal

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

const testLogEnv = "LLMTRACE_TEST_LOG"

// LoggerFromEnv builds a debug-level stdout logger when the named
// environment variable holds a truthy value, and a discard logger
// otherwise.
func LoggerFromEnv(name string) *slog.Logger {
	if enabled, err := strconv.ParseBool(os.Getenv(name)); err == nil && enabled {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var testLogger = sync.OnceValue(func() *slog.Logger {
	return LoggerFromEnv(testLogEnv)
})

// TestLogger returns the logger shared by the test suites, gated on
// LLMTRACE_TEST_LOG.
func TestLogger() *slog.Logger {
	return testLogger()
}
