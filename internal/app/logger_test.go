package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "account", "bank")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "bank", entry["account"])
	require.Contains(t, entry, "source")
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&Config{LogFormat: "pretty", LogLevel: "debug"}, &buf)

	logger.Debug("visible")
	require.Contains(t, buf.String(), "msg=visible")
}
