package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerWithWritersFansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("request done", "operation", "list_chats")

	assert.Contains(t, stderr.String(), "request done", "text output on stderr")
	assert.Contains(t, stderr.String(), "operation=list_chats")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry), "file output is JSON")
	assert.Equal(t, "request done", entry["msg"])
	assert.Equal(t, "list_chats", entry["operation"])
}

func TestSetupLoggerWithWritersHonorsLevel(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)

	logger.Info("too quiet to pass")
	logger.Warn("loud enough")

	assert.NotContains(t, stderr.String(), "too quiet to pass")
	assert.NotContains(t, file.String(), "too quiet to pass")
	assert.Contains(t, stderr.String(), "loud enough")
	assert.Contains(t, file.String(), "loud enough")
}
