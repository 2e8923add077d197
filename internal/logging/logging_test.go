package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"opsportal/internal/logging"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logging.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logging.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel("bogus"))
}

func TestWithModuleTagsRecords(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logging.SetupWriter(&buf, "info")
	logging.WithModule("engine").Info("converted", "lead_id", "l1")
	logging.WithModule("engine").Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "module=engine")
	assert.Contains(t, out, "lead_id=l1")
	assert.NotContains(t, out, "hidden")
}
