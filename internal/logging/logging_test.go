package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/pyassist/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	cl := Component(l, "backend")
	cl.Info().Str("path", "/ask").Msg("request")
	l.Debug().Msg("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "backend", entry["component"])
	assert.Equal(t, "/ask", entry["path"])
	assert.Equal(t, "request", entry["message"])
	assert.NotContains(t, buf.String(), "dropped")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "debug", Format: "console"}, &buf)
	require.NoError(t, err)

	l.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging: level")
}
