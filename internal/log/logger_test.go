package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter("production", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("user_id", "u1").Msg("login")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "login", entry["message"])
	assert.Equal(t, "production", entry["env"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestDevelopmentLoggerKeepsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter("development", &buf)

	logger.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
