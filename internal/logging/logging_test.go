package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentTagsEntries(t *testing.T) {
	prev := GetDefaultLogger()
	t.Cleanup(func() { SetDefaultLogger(prev) })

	var buf bytes.Buffer
	SetOutput(&buf, false)

	l := Component("engine")
	l.Info().Msg("started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "started", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetLevel(t *testing.T) {
	prev := GetDefaultLogger()
	t.Cleanup(func() { SetDefaultLogger(prev) })

	var buf bytes.Buffer
	SetOutput(&buf, false)

	require.NoError(t, SetLevel("WARN"))
	assert.Equal(t, zerolog.WarnLevel, GetDefaultLogger().GetLevel())

	l := Component("x")
	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")

	assert.Error(t, SetLevel("loud"))
}
